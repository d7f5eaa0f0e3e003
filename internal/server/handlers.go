package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/fitcourse/internal/auth"
	"github.com/meltforce/fitcourse/internal/catalog"
	"github.com/meltforce/fitcourse/internal/remote"
)

// maxBody caps request bodies; catalogs are the largest payload.
const maxBody = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, auth.ErrorResponse{Error: msg})
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := authStatus(err)
	resp := auth.ErrorResponse{Error: err.Error()}
	if status != http.StatusInternalServerError {
		resp.Code = auth.ErrorCode(err)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id, token, err := s.auth.Register(r.Context(), c.Email, c.Password)
	if err != nil {
		if !auth.IsClientError(err) {
			s.log.Error("sign-up failed", "error", err)
		}
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, auth.TokenResponse{Token: token, Identity: *id})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id, token, err := s.auth.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		if !auth.IsClientError(err) {
			s.log.Error("sign-in failed", "error", err)
		}
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.TokenResponse{Token: token, Identity: *id})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.auth.RequestPasswordReset(r.Context(), body.Email); err != nil {
		writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.auth.ChangePassword(r.Context(), identityFromContext(r).UID, body.Password); err != nil {
		writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFromContext(r))
}

// authorize applies the node access rules and writes the rejection itself.
// Catalog nodes are readable by anyone and never writable here; per-user
// nodes belong to the uid in their second segment.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, write bool) (remote.Path, bool) {
	path := remote.Path(chi.URLParam(r, "*"))
	if err := path.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if len(path.Segments()) < 2 {
		writeError(w, http.StatusBadRequest, "path must name a node below a root")
		return "", false
	}

	switch {
	case path.IsCatalog():
		if write {
			writeError(w, http.StatusForbidden, "catalog is read-only")
			return "", false
		}
		return path, true
	case path.IsUserScoped():
		id := identityFromContext(r)
		if id == nil {
			writeAuthError(w, auth.ErrNotSignedIn)
			return "", false
		}
		if path.Owner() != id.UID {
			writeError(w, http.StatusForbidden, "permission denied")
			return "", false
		}
		return path, true
	default:
		writeError(w, http.StatusForbidden, "permission denied")
		return "", false
	}
}

func (s *Server) storeError(w http.ResponseWriter, op string, path remote.Path, err error) {
	s.log.Error("store error", "op", op, "path", path, "error", err)
	writeError(w, http.StatusServiceUnavailable, err.Error())
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	path, ok := s.authorize(w, r, false)
	if !ok {
		return
	}
	var v any
	found, err := s.store.Read(r.Context(), path, &v)
	if err != nil {
		s.storeError(w, "read", path, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	path, ok := s.authorize(w, r, true)
	if !ok {
		return
	}
	var v any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.store.Write(r.Context(), path, v); err != nil {
		s.storeError(w, "write", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	path, ok := s.authorize(w, r, true)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), path); err != nil {
		s.storeError(w, "delete", path, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, err := catalog.ParseJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := s.seeder.Seed(r.Context(), cat)
	if err != nil {
		s.log.Error("seed error", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
