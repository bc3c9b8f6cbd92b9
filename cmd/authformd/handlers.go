package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/directory"
	"github.com/MrEthical07/authform/email"
	authmw "github.com/MrEthical07/authform/middleware"
)

type createFormRequest struct {
	Mode   string `json:"mode" validate:"omitempty,oneof=login register forgot-password"`
	Locale string `json:"locale" validate:"omitempty,oneof=pt-BR en"`
}

type fieldsRequest struct {
	Email           string `json:"email" validate:"max=320"`
	Password        string `json:"password" validate:"max=1024"`
	ConfirmPassword string `json:"confirm_password" validate:"max=1024"`
	Name            string `json:"name" validate:"max=200"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=login register forgot-password"`
}

type confirmResetRequest struct {
	Token    string `json:"token" validate:"required,max=256"`
	Password string `json:"password" validate:"required,min=6,max=1024"`
}

type formResponse struct {
	ID   string        `json:"id"`
	View authform.View `json:"view"`
}

type submitResponse struct {
	Outcome authform.Outcome `json:"outcome"`
	View    authform.View    `json:"view"`
}

// formContext carries the caller's IP and user agent into engine calls.
func formContext(r *http.Request) context.Context {
	ctx := authform.WithClientIP(r.Context(), clientIP(r))
	return authform.WithUserAgent(ctx, r.UserAgent())
}

func (s *server) lookupForm(w http.ResponseWriter, r *http.Request) (*authform.Form, bool) {
	f, ok := s.forms.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "form not found")
		return nil, false
	}
	return f, true
}

func (s *server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req createFormRequest
	if r.ContentLength != 0 {
		if err := s.decodeValidate(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	locale := req.Locale
	if locale == "" {
		locale = authform.NegotiateLocale(r.Header.Get("Accept-Language"), s.cfg.Form.Locale)
	}

	var id string
	f, err := s.engine.NewForm(authform.FormOptions{
		Locale: locale,
		OnSuccess: func(_ context.Context, normalizedEmail string) {
			s.logger.Debug("login completed", zap.String("email_domain", email.Domain(normalizedEmail)))
		},
		OnClose: func() { s.forms.remove(id) },
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot create form")
		return
	}
	id = f.ID()

	if req.Mode != "" {
		mode, _ := authform.ParseMode(req.Mode)
		if err := f.SwitchMode(formContext(r), mode); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.forms.add(f); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, formResponse{ID: id, View: f.View()})
}

func (s *server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, formResponse{ID: f.ID(), View: f.View()})
}

func (s *server) handleCloseForm(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	f.Close(formContext(r))
	s.forms.remove(f.ID())
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	var req fieldsRequest
	if err := s.decodeValidate(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.SetFields(authform.Fields{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Name:            req.Name,
	})
	writeJSON(w, http.StatusOK, formResponse{ID: f.ID(), View: f.View()})
}

func (s *server) handleBlur(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	view := f.BlurEmail(formContext(r))
	writeJSON(w, http.StatusOK, formResponse{ID: f.ID(), View: view})
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}

	out := f.Submit(formContext(r))

	if out.Success && out.Mode == authform.ModeLogin {
		if err := s.issueSession(w, out.Email); err != nil {
			s.logger.Error("session issue failed", zap.String("form_id", f.ID()), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, submitResponse{Outcome: out, View: f.View()})
}

func (s *server) issueSession(w http.ResponseWriter, normalizedEmail string) error {
	token, err := s.sessions.CreateSession(normalizedEmail)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authmw.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *server) handleSwitchMode(w http.ResponseWriter, r *http.Request) {
	f, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := s.decodeValidate(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode, err := authform.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := f.SwitchMode(formContext(r), mode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, formResponse{ID: f.ID(), View: f.View()})
}

func (s *server) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if err := s.decodeValidate(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.directory.ConfirmPasswordReset(r.Context(), req.Token, req.Password)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, directory.ErrResetTokenInvalid), errors.Is(err, directory.ErrWeakPassword),
		errors.Is(err, directory.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("password reset confirm failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "try again later")
	}
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := authmw.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": claims.Email})
}
