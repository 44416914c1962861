package api

import (
	"net/http"
	"time"

	"github.com/verityhq/verity/internal/auth"
	"github.com/verityhq/verity/internal/fault"
	"github.com/verityhq/verity/internal/models"
	"github.com/verityhq/verity/internal/scope"
)

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Organization string `json:"organization"`
	Team         string `json:"team"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		jsonError(w, "username, email and password are required", http.StatusBadRequest)
		return
	}

	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleDeveloper,
	}

	// Joining a named team creates it on first use.
	if req.Organization != "" && req.Team != "" {
		team, err := s.db.GetTeamByName(r.Context(), req.Organization, req.Team)
		if fault.Is(err, fault.KindNotFound) {
			team = &models.Team{Name: req.Team, Organization: req.Organization}
			err = s.db.CreateTeam(r.Context(), team)
		}
		if err != nil {
			writeFault(w, err)
			return
		}
		user.TeamID = &team.ID
	}

	if err := s.db.CreateUser(r.Context(), user); err != nil {
		writeFault(w, err)
		return
	}

	token, err := s.authSvc.GenerateToken(user)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusCreated, tokenResponse{Token: token, User: user})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := s.authSvc.CheckPassword(user.PasswordHash, req.Password); err != nil {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.authSvc.GenerateToken(user)
	if err != nil {
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	// Best effort; login succeeds regardless.
	_ = s.db.UpdateUserLastLogin(r.Context(), user.ID, time.Now().UTC())
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token, User: user})
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	user, err := s.db.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerScope(r.Context())
	if !scope.RoleAllows([]models.Role{models.RoleAdmin}, caller.Role) {
		writeFault(w, fault.Authorization("role changes require admin role"))
		return
	}
	id, ok := parsePathID(w, r, "id", "user id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		writeFault(w, fault.Validationf("invalid role %q", req.Role))
		return
	}
	if err := s.db.UpdateUserRole(r.Context(), id, role); err != nil {
		writeFault(w, err)
		return
	}
	user, err := s.db.GetUserByID(r.Context(), id)
	if err != nil {
		writeFault(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}
