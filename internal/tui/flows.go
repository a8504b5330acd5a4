package tui

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/service"
	"github.com/muurk/incidentdesk/internal/session"
)

// Modal names. Each is the first fragment segment that opens it.
const (
	ModalSignup   modal.Name = "signup"
	ModalSignin   modal.Name = "signin"
	ModalReport   modal.Name = "report"
	ModalCategory modal.Name = "category"
	ModalRole     modal.Name = "role"
	ModalSettings modal.Name = "settings"
)

// KnownModals lists every modal the interface can render.
var KnownModals = []modal.Name{ModalSignup, ModalSignin, ModalReport, ModalCategory, ModalRole, ModalSettings}

func signupFlow(client *service.Client) flowSpec {
	return flowSpec{
		Name:  ModalSignup,
		Title: "Create account",
		Steps: []stepSpec{
			{Title: "Welcome", Intro: "Create an account to report and follow incidents."},
			{Title: "Account", Fields: []fieldSpec{
				{Name: "username", Label: "Username", Placeholder: "jdoe", CharLimit: 64},
				{Name: "email", Label: "Email", Placeholder: "jdoe@example.com", CharLimit: 254},
			}},
			{Title: "Name", Fields: []fieldSpec{
				{Name: "firstName", Label: "First name", CharLimit: 100},
				{Name: "lastName", Label: "Last name", CharLimit: 100},
			}},
			{Title: "Password", Fields: []fieldSpec{
				{Name: "password", Label: "Password", Secret: true},
				{Name: "confirmPassword", Label: "Confirm password", Secret: true},
			}},
			{Title: "Done", Intro: "Your account has been created. Press enter to sign in."},
		},
		Call: func(ctx context.Context, v map[string]string, validateOnly bool) service.Response {
			return client.Signup(ctx, service.SignupRequest{
				Username:        v["username"],
				Email:           v["email"],
				FirstName:       v["firstName"],
				LastName:        v["lastName"],
				Password:        v["password"],
				ConfirmPassword: v["confirmPassword"],
			}, validateOnly)
		},
		Next: ModalSignin,
	}
}

func signinFlow(client *service.Client, store session.Store) flowSpec {
	return flowSpec{
		Name:  ModalSignin,
		Title: "Sign in",
		Steps: []stepSpec{
			{Title: "Credentials", Fields: []fieldSpec{
				{Name: "username", Label: "Username", CharLimit: 64},
				{Name: "password", Label: "Password", Secret: true},
			}},
		},
		Call: func(ctx context.Context, v map[string]string, _ bool) service.Response {
			res := client.Signin(ctx, service.SigninRequest{
				Username: v["username"],
				Password: v["password"],
			})
			if res.IsOK() {
				if err := store.SignIn(res.Value()); err != nil {
					logging.Error("Failed to persist session", zap.Error(err))
				}
			}
			return res
		},
		Done: "Signed in",
	}
}

func reportFlow(client *service.Client) flowSpec {
	return flowSpec{
		Name:  ModalReport,
		Title: "Report an incident",
		Steps: []stepSpec{
			{Title: "What happened", Fields: []fieldSpec{
				{Name: "title", Label: "Title", CharLimit: 200},
				{Name: "categoryId", Label: "Category", Placeholder: "category id"},
				{Name: "severity", Label: "Severity", Placeholder: "low, medium, high"},
			}},
			{Title: "Where", Fields: []fieldSpec{
				{Name: "location", Label: "Location", CharLimit: 200},
				{Name: "description", Label: "Description", CharLimit: 2000},
			}},
			{Title: "Sent", Intro: "Thanks. The incident has been filed."},
		},
		Call: func(ctx context.Context, v map[string]string, validateOnly bool) service.Response {
			return client.ReportIncident(ctx, service.Incident{
				Title:       v["title"],
				Description: v["description"],
				CategoryID:  v["categoryId"],
				Location:    v["location"],
				Severity:    v["severity"],
			}, validateOnly)
		},
		Done: "Incident reported",
	}
}

func categoryFlow(client *service.Client) flowSpec {
	return flowSpec{
		Name:  ModalCategory,
		Title: "New category",
		Steps: []stepSpec{
			{Title: "Category", Fields: []fieldSpec{
				{Name: "name", Label: "Name", CharLimit: 100},
				{Name: "description", Label: "Description", CharLimit: 500},
			}},
		},
		Call: func(ctx context.Context, v map[string]string, validateOnly bool) service.Response {
			return client.CreateCategory(ctx, service.Category{
				Name:        v["name"],
				Description: v["description"],
			}, validateOnly)
		},
		Done: "Category created",
	}
}

func roleFlow(client *service.Client) flowSpec {
	return flowSpec{
		Name:  ModalRole,
		Title: "New role",
		Steps: []stepSpec{
			{Title: "Role", Fields: []fieldSpec{
				{Name: "name", Label: "Name", CharLimit: 100},
				{Name: "permissions", Label: "Permissions", Placeholder: "incidents:read, incidents:write"},
			}},
		},
		Call: func(ctx context.Context, v map[string]string, validateOnly bool) service.Response {
			return client.CreateRole(ctx, service.Role{
				Name:        v["name"],
				Permissions: splitList(v["permissions"]),
			}, validateOnly)
		},
		Done: "Role created",
	}
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
