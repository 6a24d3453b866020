package server

import (
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		user, err := s.auth.Register(r.Context(), req.Email, req.Password)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"user": user})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		session, err := s.auth.Login(r.Context(), req.Email, req.Password, loginKey(r, req.Email))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) RefreshTokensHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		pair, err := s.auth.Refresh(r.Context(), req.RefreshToken, clientIP(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tokens": pair})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshTokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resetToken := r.URL.Query().Get("token")
		if resetToken == "" {
			s.writeError(w, apperrors.New(apperrors.KindValidationFailed, `"token" is required`))
			return
		}
		var req resetPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		if err := s.auth.ResetPassword(r.Context(), resetToken, req.Password); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) SendVerificationEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeError(w, apperrors.ErrUnauthenticated)
			return
		}
		if err := s.auth.SendVerificationEmail(r.Context(), userID); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verifyToken := r.URL.Query().Get("token")
		if verifyToken == "" {
			s.writeError(w, apperrors.New(apperrors.KindValidationFailed, `"token" is required`))
			return
		}
		if err := s.auth.VerifyEmail(r.Context(), verifyToken); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			s.writeError(w, apperrors.ErrUnauthenticated)
			return
		}
		user, err := s.auth.GetUser(r.Context(), userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}
}

// JWKSHandler returns the JSON Web Key Set used to validate tokens
func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.jwks.GetJWKS()
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, jwks)
	}
}

func (s *Server) FaviconHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// NotFoundHandler handles 404 errors
func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, apperrors.ErrNotFound)
	}
}
