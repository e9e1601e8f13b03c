package server

import (
	"errors"
	"strconv"

	"quill/internal/gate"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/service"
	"quill/internal/session"

	"github.com/gofiber/fiber/v2"
)

// PostList handles GET and POST for / and /post/list. The search form
// submits via POST; both methods render the same paginated listing.
func (s *Server) PostList(c *fiber.Ctx) error {
	query := c.Query("q")
	if c.Method() == fiber.MethodPost {
		query = c.FormValue("q")
	}
	page := c.QueryInt("page", 1)

	result, err := s.postService.ListPosts(c.Context(), service.ListPostsInput{
		Query:         query,
		Page:          page,
		CurrentUserID: s.currentUserID(c),
	})
	if err != nil {
		return err
	}

	return s.render(c, "post_list", fiber.Map{
		"Title":      "Latest posts",
		"Posts":      result.Posts,
		"Page":       result.Page,
		"TotalPages": result.TotalPages,
		"HasPrev":    result.HasPrev,
		"HasNext":    result.HasNext,
		"PrevPage":   result.Page - 1,
		"NextPage":   result.Page + 1,
		"Query":      query,
	})
}

// renderPostDetail draws the detail view for a post, with the comment form
// bound to draft content when a submission failed validation.
func (s *Server) renderPostDetail(c *fiber.Ctx, postID uint, commentDraft, commentError string) error {
	post, err := s.postService.GetPost(c.Context(), postID, s.currentUserID(c))
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	comments, err := s.commentService.ListForPost(c.Context(), postID)
	if err != nil {
		return err
	}

	return s.render(c, "post_detail", fiber.Map{
		"Title":        post.Title,
		"Post":         post,
		"Comments":     comments,
		"CommentDraft": commentDraft,
		"CommentError": commentError,
	})
}

// PostDetail handles GET /post/:id
func (s *Server) PostDetail(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	return s.renderPostDetail(c, postID, "", "")
}

// AddComment handles POST /post/:id. The comment form is embedded in the
// detail view; an invalid submission redisplays the view with the form bound,
// success redirects back to the same page.
func (s *Server) AddComment(c *fiber.Ctx) error {
	user := s.currentUser(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if decision := s.gate.May(user, gate.ActionComment, nil); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionComment)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
	}

	content := c.FormValue("content")
	_, err = s.commentService.AddComment(c.Context(), service.CreateCommentInput{
		UserID:  user.ID,
		PostID:  postID,
		Content: content,
	})
	if err != nil {
		var appErr *models.AppError
		switch {
		case models.IsCode(err, "NOT_FOUND"):
			return s.renderNotFound(c)
		case errors.As(err, &appErr) && appErr.Code == "VALIDATION_ERROR":
			return s.renderPostDetail(c, postID, content, appErr.Message)
		default:
			return err
		}
	}

	return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
}

// ShowCreatePost handles GET /post/create
func (s *Server) ShowCreatePost(c *fiber.Ctx) error {
	categories, err := s.categoryRepo.List(c.Context())
	if err != nil {
		return err
	}
	return s.render(c, "create_post", fiber.Map{
		"Title":      "New post",
		"Categories": categories,
	})
}

// CreatePost handles POST /post/create
func (s *Server) CreatePost(c *fiber.Ctx) error {
	user := s.currentUser(c)

	if decision := s.gate.May(user, gate.ActionCreatePost, nil); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionCreatePost)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	in := service.CreatePostInput{
		UserID:     user.ID,
		Title:      c.FormValue("title"),
		Content:    c.FormValue("content"),
		CategoryID: parseCategoryID(c.FormValue("category")),
	}

	if file, ferr := c.FormFile("image"); ferr == nil && file != nil {
		url, uerr := s.saveUpload(c, file)
		if uerr != nil {
			return s.redisplayPostForm(c, "create_post", "New post", in, uerr)
		}
		in.ImageURL = url
	}

	post, err := s.postService.CreatePost(c.Context(), in)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && (appErr.Code == "VALIDATION_ERROR" || appErr.Code == "NOT_FOUND") {
			return s.redisplayPostForm(c, "create_post", "New post", in, err)
		}
		return err
	}

	session.AddFlash(c, session.FlashSuccess, "Post created.")
	return c.Redirect("/post/"+strconv.Itoa(int(post.ID)), fiber.StatusSeeOther)
}

// ShowEditPost handles GET /post/:id/edit
func (s *Server) ShowEditPost(c *fiber.Ctx) error {
	user := s.currentUser(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), postID, user.ID)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	if decision := s.gate.May(user, gate.ActionEditPost, post); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionEditPost)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
	}

	categories, err := s.categoryRepo.List(c.Context())
	if err != nil {
		return err
	}

	return s.render(c, "post_edit", fiber.Map{
		"Title":      "Edit post",
		"Post":       post,
		"Categories": categories,
	})
}

// EditPost handles POST /post/:id/edit. Omitting the image field preserves
// the existing image; an edit is not a full replace.
func (s *Server) EditPost(c *fiber.Ctx) error {
	user := s.currentUser(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), postID, user.ID)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	if decision := s.gate.May(user, gate.ActionEditPost, post); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionEditPost)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
	}

	in := service.UpdatePostInput{
		PostID:     postID,
		Title:      c.FormValue("title"),
		Content:    c.FormValue("content"),
		CategoryID: parseCategoryID(c.FormValue("category")),
	}

	if file, ferr := c.FormFile("image"); ferr == nil && file != nil {
		url, uerr := s.saveUpload(c, file)
		if uerr != nil {
			return s.redisplayEditForm(c, post, in, uerr)
		}
		in.ImageURL = url
		in.ImageProvided = true
	}

	updated, err := s.postService.UpdatePost(c.Context(), in)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && (appErr.Code == "VALIDATION_ERROR" || appErr.Code == "NOT_FOUND") {
			return s.redisplayEditForm(c, post, in, err)
		}
		return err
	}

	session.AddFlash(c, session.FlashSuccess, "Post updated.")
	return c.Redirect("/post/"+strconv.Itoa(int(updated.ID)), fiber.StatusSeeOther)
}

// ShowDeletePost handles GET /post/:id/delete. It only shows a confirmation
// view; deletion never happens on a GET.
func (s *Server) ShowDeletePost(c *fiber.Ctx) error {
	user := s.currentUser(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), postID, user.ID)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	if decision := s.gate.May(user, gate.ActionDeletePost, post); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionDeletePost)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
	}

	return s.render(c, "post_confirm_delete", fiber.Map{
		"Title": "Delete post",
		"Post":  post,
	})
}

// DeletePost handles POST /post/:id/delete
func (s *Server) DeletePost(c *fiber.Ctx) error {
	user := s.currentUser(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.Context(), postID, user.ID)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	if decision := s.gate.May(user, gate.ActionDeletePost, post); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionDeletePost)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
	}

	if err := s.postService.DeletePost(c.Context(), postID); err != nil {
		return err
	}

	session.AddFlash(c, session.FlashSuccess, "Post deleted.")
	return c.Redirect("/", fiber.StatusSeeOther)
}

// LikePost handles GET and POST /post/:id/like, toggling the acting user's
// like and redirecting back to the detail view either way.
func (s *Server) LikePost(c *fiber.Ctx) error {
	user := s.currentUser(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if decision := s.gate.May(user, gate.ActionLikePost, nil); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionLikePost)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
	}

	if _, err := s.postService.ToggleLike(c.Context(), user.ID, postID); err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	return c.Redirect("/post/"+strconv.Itoa(int(postID)), fiber.StatusSeeOther)
}

// CategoryView handles GET /category/:id
func (s *Server) CategoryView(c *fiber.Ctx) error {
	categoryID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	category, err := s.categoryRepo.GetByID(c.Context(), categoryID)
	if err != nil {
		if models.IsCode(err, "NOT_FOUND") {
			return s.renderNotFound(c)
		}
		return err
	}

	result, err := s.postService.ListPosts(c.Context(), service.ListPostsInput{
		Page:          c.QueryInt("page", 1),
		CategoryID:    &categoryID,
		CurrentUserID: s.currentUserID(c),
	})
	if err != nil {
		return err
	}

	return s.render(c, "category_post", fiber.Map{
		"Title":      category.Name,
		"Category":   category,
		"Posts":      result.Posts,
		"Page":       result.Page,
		"TotalPages": result.TotalPages,
		"HasPrev":    result.HasPrev,
		"HasNext":    result.HasNext,
		"PrevPage":   result.Page - 1,
		"NextPage":   result.Page + 1,
	})
}

// redisplayPostForm re-renders the create form with the submitted values and
// the failure message.
func (s *Server) redisplayPostForm(c *fiber.Ctx, view, title string, in service.CreatePostInput, err error) error {
	categories, cerr := s.categoryRepo.List(c.Context())
	if cerr != nil {
		return cerr
	}
	return s.render(c, view, fiber.Map{
		"Title":      title,
		"Error":      userMessage(err),
		"FormTitle":  in.Title,
		"Content":    in.Content,
		"CategoryID": in.CategoryID,
		"Categories": categories,
	})
}

// redisplayEditForm re-renders the edit form with the failure message. The
// form stays bound to the submitted values, not the stored post, so the
// user's edits survive a rejected submission.
func (s *Server) redisplayEditForm(c *fiber.Ctx, post *models.Post, in service.UpdatePostInput, err error) error {
	categories, cerr := s.categoryRepo.List(c.Context())
	if cerr != nil {
		return cerr
	}
	bound := *post
	bound.Title = in.Title
	bound.Content = in.Content
	bound.CategoryID = in.CategoryID
	return s.render(c, "post_edit", fiber.Map{
		"Title":      "Edit post",
		"Error":      userMessage(err),
		"Post":       &bound,
		"Categories": categories,
	})
}

// userMessage extracts the user-visible message from an AppError.
func userMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// parseCategoryID converts the optional category form value. An empty or
// malformed value means "no category".
func parseCategoryID(raw string) *uint {
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil
	}
	cid := uint(id)
	return &cid
}
