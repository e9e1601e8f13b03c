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

// ShowSignup handles GET /signup
func (s *Server) ShowSignup(c *fiber.Ctx) error {
	if s.currentUser(c) != nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return s.render(c, "sign_up", fiber.Map{
		"Title": "Sign up",
	})
}

// Signup handles POST /signup
func (s *Server) Signup(c *fiber.Ctx) error {
	in := service.SignupInput{
		Username:        c.FormValue("username"),
		Email:           c.FormValue("email"),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirm_password"),
	}

	_, err := s.userService.Signup(c.Context(), in)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			// Validation and conflict failures redisplay the form with the
			// submitted values; the password fields are never echoed back.
			return s.render(c, "sign_up", fiber.Map{
				"Title":    "Sign up",
				"Error":    appErr.Message,
				"Username": in.Username,
				"Email":    in.Email,
			})
		}
		return err
	}

	session.AddFlash(c, session.FlashSuccess, "Account created. Please log in.")
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// ShowLogin handles GET /login
func (s *Server) ShowLogin(c *fiber.Ctx) error {
	if s.currentUser(c) != nil {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return s.render(c, "login", fiber.Map{
		"Title": "Log in",
	})
}

// Login handles POST /login
func (s *Server) Login(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	user, err := s.userService.Authenticate(c.Context(), username, password)
	if err != nil {
		if models.IsCode(err, "UNAUTHORIZED") {
			return s.render(c, "login", fiber.Map{
				"Title":    "Log in",
				"Error":    "Invalid username or password",
				"Username": username,
			})
		}
		return err
	}

	if err := s.sessions.Create(c, user.ID); err != nil {
		return err
	}

	observability.Logger.InfoContext(c.UserContext(), "user logged in", "user_id", user.ID)
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Logout handles GET /logout
func (s *Server) Logout(c *fiber.Ctx) error {
	s.sessions.Clear(c)
	session.AddFlash(c, session.FlashSuccess, "You have been logged out.")
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// requireStaffIdentity gates the staff login surface on the acting identity.
// Non-staff visitors are turned away with a warning before the form is even
// rendered; anonymous visitors go to the regular login page first. On denial
// it writes the redirect itself and returns false.
func (s *Server) requireStaffIdentity(c *fiber.Ctx) bool {
	decision := s.gate.May(s.currentUser(c), gate.ActionAdminLogin, nil)
	if decision.Allowed {
		return true
	}
	observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionAdminLogin)).Inc()
	session.AddFlash(c, session.FlashWarning, decision.Reason)
	if decision.LoginRequired {
		_ = c.Redirect("/login", fiber.StatusSeeOther)
	} else {
		_ = c.Redirect("/", fiber.StatusSeeOther)
	}
	return false
}

// ShowAdminLogin handles GET /user/admin
func (s *Server) ShowAdminLogin(c *fiber.Ctx) error {
	if !s.requireStaffIdentity(c) {
		return nil
	}
	return s.render(c, "admin_login", fiber.Map{
		"Title": "Staff login",
	})
}

// AdminLogin handles POST /user/admin. The acting identity must already be
// staff; the submitted credentials are then confirmed before the dashboard
// is opened.
func (s *Server) AdminLogin(c *fiber.Ctx) error {
	if !s.requireStaffIdentity(c) {
		return nil
	}

	username := c.FormValue("username")
	password := c.FormValue("password")

	user, err := s.userService.Authenticate(c.Context(), username, password)
	if err != nil {
		if models.IsCode(err, "UNAUTHORIZED") {
			return s.render(c, "admin_login", fiber.Map{
				"Title":    "Staff login",
				"Error":    "Invalid username or password",
				"Username": username,
			})
		}
		return err
	}

	if decision := s.gate.May(user, gate.ActionAdminLogin, nil); !decision.Allowed {
		observability.AuthorizationDeniedTotal.WithLabelValues(string(gate.ActionAdminLogin)).Inc()
		session.AddFlash(c, session.FlashWarning, decision.Reason)
		return c.Redirect("/", fiber.StatusSeeOther)
	}

	if err := s.sessions.Create(c, user.ID); err != nil {
		return err
	}

	observability.Logger.InfoContext(c.UserContext(), "staff logged in", "user_id", user.ID)
	return c.Redirect("/user/admin/dashboard", fiber.StatusSeeOther)
}
