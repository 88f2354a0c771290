// internal/handlers/user/user_handler.go
package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"segmentbook-service/internal/domain/auth"
	"segmentbook-service/internal/middleware"
	"segmentbook-service/internal/pkg/response"
)

type Service interface {
	GetProfile(ctx context.Context, userID string) (*auth.Profile, error)
	UpdateProfile(ctx context.Context, userID string, req *auth.UpdateProfileRequest) (*auth.Profile, error)
	ListDonors(ctx context.Context) ([]auth.Donor, error)
	GetDonor(ctx context.Context, id string) (*auth.Donor, error)
}

type UserHandler struct {
	service Service
}

func NewUserHandler(service Service) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	profile, err := h.service.GetProfile(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.FromError(c, "failed to load profile", err)
		return
	}
	response.Success(c, http.StatusOK, "profile retrieved", profile)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req auth.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), middleware.MustGetUserID(c), &req)
	if err != nil {
		response.FromError(c, "failed to update profile", err)
		return
	}
	response.Success(c, http.StatusOK, "profile updated", profile)
}

func (h *UserHandler) ListDonors(c *gin.Context) {
	donors, err := h.service.ListDonors(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list donors", err)
		return
	}
	response.Success(c, http.StatusOK, "donors retrieved", donors)
}

func (h *UserHandler) GetDonor(c *gin.Context) {
	id, ok := middleware.ParamUUID(c, "id")
	if !ok {
		return
	}
	donor, err := h.service.GetDonor(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "failed to load donor", err)
		return
	}
	response.Success(c, http.StatusOK, "donor retrieved", donor)
}
