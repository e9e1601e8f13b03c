package server

import (
	"errors"

	"quill/internal/gate"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/service"
	"quill/internal/session"

	"github.com/gofiber/fiber/v2"
)

// ProfileView handles GET /user/profile. The profile record is created
// lazily on first view.
func (s *Server) ProfileView(c *fiber.Ctx) error {
	user := s.currentUser(c)

	page, err := s.userService.GetProfilePage(c.Context(), user.ID)
	if err != nil {
		return err
	}

	return s.render(c, "profile", fiber.Map{
		"Title":      user.Username,
		"User":       page.User,
		"Profile":    page.Profile,
		"TotalPosts": page.TotalPosts,
		"TotalLikes": page.TotalLikes,
	})
}

// MyPosts handles GET /user/posts
func (s *Server) MyPosts(c *fiber.Ctx) error {
	user := s.currentUser(c)

	result, err := s.postService.ListPosts(c.Context(), service.ListPostsInput{
		Page:          c.QueryInt("page", 1),
		AuthorID:      &user.ID,
		CurrentUserID: user.ID,
	})
	if err != nil {
		return err
	}

	return s.render(c, "my_post", fiber.Map{
		"Title":      "My posts",
		"Posts":      result.Posts,
		"Page":       result.Page,
		"TotalPages": result.TotalPages,
		"HasPrev":    result.HasPrev,
		"HasNext":    result.HasNext,
		"PrevPage":   result.Page - 1,
		"NextPage":   result.Page + 1,
	})
}

// ShowEditProfile handles GET /user/profile/edit
func (s *Server) ShowEditProfile(c *fiber.Ctx) error {
	user := s.currentUser(c)

	page, err := s.userService.GetProfilePage(c.Context(), user.ID)
	if err != nil {
		return err
	}

	return s.render(c, "edit_profile", fiber.Map{
		"Title":   "Edit profile",
		"User":    page.User,
		"Profile": page.Profile,
	})
}

// EditProfile handles POST /user/profile/edit. The user and profile fields
// validate together and commit together; neither is saved if the other is
// invalid.
func (s *Server) EditProfile(c *fiber.Ctx) error {
	user := s.currentUser(c)

	if decision := s.gate.May(user, gate.ActionEditProfile, nil); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionEditProfile)).Inc()
		session.AddFlash(c, session.FlashError, decision.Reason)
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	in := service.UpdateProfileInput{
		UserID:    user.ID,
		FirstName: c.FormValue("first_name"),
		LastName:  c.FormValue("last_name"),
		Email:     c.FormValue("email"),
		Bio:       c.FormValue("bio"),
	}

	if file, ferr := c.FormFile("avatar"); ferr == nil && file != nil {
		url, uerr := s.saveUpload(c, file)
		if uerr != nil {
			return s.redisplayProfileForm(c, in, uerr)
		}
		in.AvatarURL = url
		in.AvatarProvided = true
	}

	if err := s.userService.UpdateProfile(c.Context(), in); err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && (appErr.Code == "VALIDATION_ERROR" || appErr.Code == "CONFLICT") {
			return s.redisplayProfileForm(c, in, err)
		}
		return err
	}

	session.AddFlash(c, session.FlashSuccess, "Profile updated.")
	return c.Redirect("/user/profile", fiber.StatusSeeOther)
}

// AdminDashboard handles GET /user/admin/dashboard. Aggregates are only
// computed after the staff check passes.
func (s *Server) AdminDashboard(c *fiber.Ctx) error {
	user := s.currentUser(c)

	if decision := s.gate.May(user, gate.ActionViewDashboard, nil); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionViewDashboard)).Inc()
		session.AddFlash(c, session.FlashWarning, decision.Reason)
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	stats, err := s.dashboardService.Stats(c.Context())
	if err != nil {
		return err
	}

	return s.render(c, "admin_dashboard", fiber.Map{
		"Title":           "Dashboard",
		"TotalUsers":      stats.TotalUsers,
		"TotalPosts":      stats.TotalPosts,
		"TotalCategories": stats.TotalCategories,
		"TotalComments":   stats.TotalComments,
		"RecentPosts":     stats.RecentPosts,
	})
}

// redisplayProfileForm re-renders the profile form with the submitted values
// and the failure message.
func (s *Server) redisplayProfileForm(c *fiber.Ctx, in service.UpdateProfileInput, err error) error {
	user := s.currentUser(c)
	profile, _, perr := s.profileRepo.GetOrCreate(c.Context(), user.ID)
	if perr != nil {
		return perr
	}

	form := *user
	form.FirstName = in.FirstName
	form.LastName = in.LastName
	form.Email = in.Email
	p := *profile
	p.Bio = in.Bio
	profile = &p

	return s.render(c, "edit_profile", fiber.Map{
		"Title":   "Edit profile",
		"Error":   userMessage(err),
		"User":    &form,
		"Profile": profile,
	})
}
