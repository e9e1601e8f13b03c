package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	_, app, db := newTestServer(t)
	seedUser(t, db, "alice", "password1", false)
	cookie := loginAs(t, app, "alice", "password1")

	resp := postForm(t, app, "/post/create", url.Values{
		"title":   {"My First Post"},
		"content": {"Hello readers"},
	}, cookie)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var post models.Post
	require.NoError(t, db.Where("title = ?", "My First Post").First(&post).Error)
	assert.Equal(t, "my-first-post", post.Slug)
	assert.Nil(t, post.CategoryID)
	assert.Equal(t, fmt.Sprintf("/post/%d", post.ID), resp.Header.Get("Location"))
}

func TestCreatePost_ValidationRedisplaysForm(t *testing.T) {
	_, app, db := newTestServer(t)
	seedUser(t, db, "alice", "password1", false)
	cookie := loginAs(t, app, "alice", "password1")

	resp := postForm(t, app, "/post/create", url.Values{
		"title":   {""},
		"content": {"has content but no title"},
	}, cookie)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "title is required")
	assert.Contains(t, body, "has content but no title", "submitted content is echoed back")

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreatePost_RedisplayKeepsChosenCategory(t *testing.T) {
	_, app, db := newTestServer(t)
	seedUser(t, db, "alice", "password1", false)
	category := &models.Category{Name: "Travel"}
	require.NoError(t, db.Create(category).Error)
	cookie := loginAs(t, app, "alice", "password1")

	resp := postForm(t, app, "/post/create", url.Values{
		"title":    {""},
		"content":  {"categorised but untitled"},
		"category": {fmt.Sprintf("%d", category.ID)},
	}, cookie)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "title is required")
	assert.Contains(t, body, fmt.Sprintf(`value="%d" selected`, category.ID),
		"the chosen category stays selected on redisplay")
}

func TestPostDetail(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	post := seedPost(t, db, author, "Readable Post", testTime(1))
	cookie := loginAs(t, app, "author", "password1")

	resp := doGet(t, app, fmt.Sprintf("/post/%d", post.ID), cookie)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Readable Post")
	assert.Contains(t, body, "content of Readable Post")

	t.Run("unknown id is a 404", func(t *testing.T) {
		resp := doGet(t, app, "/post/99999", cookie)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed id is a 404", func(t *testing.T) {
		resp := doGet(t, app, "/post/banana", cookie)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestEditPost_NonAuthorIsDenied(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	seedUser(t, db, "intruder", "password1", false)
	post := seedPost(t, db, author, "Original Title", testTime(1))

	cookie := loginAs(t, app, "intruder", "password1")
	resp := postForm(t, app, fmt.Sprintf("/post/%d/edit", post.ID), url.Values{
		"title":   {"Hijacked"},
		"content": {"rewritten"},
	}, cookie)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/post/%d", post.ID), resp.Header.Get("Location"))

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "Original Title", stored.Title, "a denied edit must not change the post")
}

func TestEditPost_AuthorKeepsSlug(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	post := seedPost(t, db, author, "Original Title", testTime(1))
	cookie := loginAs(t, app, "author", "password1")

	resp := postForm(t, app, fmt.Sprintf("/post/%d/edit", post.ID), url.Values{
		"title":   {"Brand New Title"},
		"content": {"updated body"},
	}, cookie)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "Brand New Title", stored.Title)
	assert.Equal(t, "original-title", stored.Slug, "editing must not regenerate the slug")
	assert.Equal(t, author.ID, stored.UserID)
}

func TestEditPost_RedisplayKeepsSubmittedValues(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	category := &models.Category{Name: "Music"}
	require.NoError(t, db.Create(category).Error)
	post := seedPost(t, db, author, "Original Title", testTime(1))
	cookie := loginAs(t, app, "author", "password1")

	resp := postForm(t, app, fmt.Sprintf("/post/%d/edit", post.ID), url.Values{
		"title":    {""},
		"content":  {"reworked body"},
		"category": {fmt.Sprintf("%d", category.ID)},
	}, cookie)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "title is required")
	assert.Contains(t, body, "reworked body", "submitted content is echoed back")
	assert.Contains(t, body, fmt.Sprintf(`value="%d" selected`, category.ID),
		"the chosen category stays selected on redisplay")

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, "Original Title", stored.Title, "a rejected edit must not change the post")
	assert.Nil(t, stored.CategoryID)
}

func TestDeletePost(t *testing.T) {
	t.Run("confirmation GET never deletes", func(t *testing.T) {
		_, app, db := newTestServer(t)
		author := seedUser(t, db, "author", "password1", false)
		post := seedPost(t, db, author, "Still Here", testTime(1))
		cookie := loginAs(t, app, "author", "password1")

		resp := doGet(t, app, fmt.Sprintf("/post/%d/delete", post.ID), cookie)
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Still Here")

		var count int64
		require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("non-author is denied", func(t *testing.T) {
		_, app, db := newTestServer(t)
		author := seedUser(t, db, "author", "password1", false)
		seedUser(t, db, "intruder", "password1", false)
		post := seedPost(t, db, author, "Coveted Post", testTime(1))

		cookie := loginAs(t, app, "intruder", "password1")
		resp := postForm(t, app, fmt.Sprintf("/post/%d/delete", post.ID), url.Values{}, cookie)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("/post/%d", post.ID), resp.Header.Get("Location"))

		var count int64
		require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
		assert.Equal(t, int64(1), count, "a denied delete must not remove the post")
	})

	t.Run("author delete removes the post and its engagement", func(t *testing.T) {
		_, app, db := newTestServer(t)
		author := seedUser(t, db, "author", "password1", false)
		reader := seedUser(t, db, "reader", "password1", false)
		post := seedPost(t, db, author, "Doomed Post", testTime(1))
		require.NoError(t, db.Create(&models.Comment{Content: "bye", UserID: reader.ID, PostID: post.ID}).Error)
		require.NoError(t, db.Create(&models.Like{UserID: reader.ID, PostID: post.ID}).Error)

		cookie := loginAs(t, app, "author", "password1")
		resp := postForm(t, app, fmt.Sprintf("/post/%d/delete", post.ID), url.Values{}, cookie)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))

		var posts, comments, likes int64
		require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
		require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
		require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
		assert.Zero(t, posts)
		assert.Zero(t, comments)
		assert.Zero(t, likes)
	})
}

func TestLikeToggle(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	post := seedPost(t, db, author, "Likeable Post", testTime(1))
	cookie := loginAs(t, app, "author", "password1")

	likeURL := fmt.Sprintf("/post/%d/like", post.ID)

	resp := postForm(t, app, likeURL, url.Values{}, cookie)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Like{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	resp = postForm(t, app, likeURL, url.Values{}, cookie)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.NoError(t, db.Model(&models.Like{}).Count(&count).Error)
	assert.Zero(t, count, "a second toggle must remove the like")
}

func TestAddComment(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	commenter := seedUser(t, db, "commenter", "password1", false)
	post := seedPost(t, db, author, "Discussed Post", testTime(1))
	cookie := loginAs(t, app, "commenter", "password1")

	detailURL := fmt.Sprintf("/post/%d", post.ID)

	resp := postForm(t, app, detailURL, url.Values{"content": {"great read"}}, cookie)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, detailURL, resp.Header.Get("Location"))

	var comment models.Comment
	require.NoError(t, db.Where("post_id = ?", post.ID).First(&comment).Error)
	assert.Equal(t, "great read", comment.Content)
	assert.Equal(t, commenter.ID, comment.UserID)

	t.Run("blank comment redisplays the detail view", func(t *testing.T) {
		resp := postForm(t, app, detailURL, url.Values{"content": {"   "}}, cookie)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "comment cannot be empty")
		assert.Contains(t, body, "Discussed Post")

		var count int64
		require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("overlong comment keeps the draft in the form", func(t *testing.T) {
		draft := "d" + strings.Repeat("r", 10000)
		resp := postForm(t, app, detailURL, url.Values{"content": {draft}}, cookie)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "comment too long")
		assert.Contains(t, body, draft)

		var count int64
		require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestListing_SearchAndPaging(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	for i := 1; i <= 12; i++ {
		seedPost(t, db, author, fmt.Sprintf("Chapter %02d", i), testTime(i))
	}

	t.Run("front page shows the newest five", func(t *testing.T) {
		resp := doGet(t, app, "/")
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Chapter 12")
		assert.Contains(t, body, "Chapter 08")
		assert.NotContains(t, body, "Chapter 07")
	})

	t.Run("page beyond the end clamps to the last page", func(t *testing.T) {
		resp := doGet(t, app, "/?page=99")
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Chapter 01", "last page holds the oldest posts")
		assert.NotContains(t, body, "Chapter 03")
	})

	t.Run("page zero clamps to the first page", func(t *testing.T) {
		resp := doGet(t, app, "/?page=0")
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Chapter 12")
	})

	t.Run("search narrows by title", func(t *testing.T) {
		resp := doGet(t, app, "/?q=chapter+05")
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Chapter 05")
		assert.NotContains(t, body, "Chapter 06")
	})

	t.Run("search form submits via POST", func(t *testing.T) {
		resp := postForm(t, app, "/post/list", url.Values{"q": {"chapter 05"}})
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Chapter 05")
		assert.NotContains(t, body, "Chapter 06")
	})
}

func TestCategoryView(t *testing.T) {
	_, app, db := newTestServer(t)
	author := seedUser(t, db, "author", "password1", false)
	category := &models.Category{Name: "Travel"}
	require.NoError(t, db.Create(category).Error)

	tagged := seedPost(t, db, author, "Tagged Post", testTime(1))
	tagged.CategoryID = &category.ID
	require.NoError(t, db.Save(tagged).Error)
	seedPost(t, db, author, "Untagged Post", testTime(2))

	cookie := loginAs(t, app, "author", "password1")

	resp := doGet(t, app, fmt.Sprintf("/category/%d", category.ID), cookie)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Tagged Post")
	assert.NotContains(t, body, "Untagged Post")

	t.Run("unknown category is a 404", func(t *testing.T) {
		resp := doGet(t, app, "/category/999", cookie)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := doGet(t, app, "/no/such/page")
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
