package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/usecase"
)

const maxImportBodyBytes = 8 << 20

type Handler struct {
	auctionService   *usecase.AuctionService
	registry         *usecase.AuctionRegistry
	sweeper          *usecase.ExpirySweeper
	catalogueService *usecase.CatalogueService
	teamService      *usecase.TeamService
	logger           *logging.Logger
	validator        *validator.Validate
	upgrader         websocket.Upgrader
	origins          originPolicy
}

func NewHandler(
	auctionService *usecase.AuctionService,
	registry *usecase.AuctionRegistry,
	sweeper *usecase.ExpirySweeper,
	catalogueService *usecase.CatalogueService,
	teamService *usecase.TeamService,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	h := &Handler{
		auctionService:   auctionService,
		registry:         registry,
		sweeper:          sweeper,
		catalogueService: catalogueService,
		teamService:      teamService,
		logger:           logger,
		validator:        validator.New(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkLiveOrigin,
	}
	return h
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) decodeRequest(ctx context.Context, r *http.Request, dst any) error {
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

func readImportBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	return raw, nil
}

func (h *Handler) principalID(ctx context.Context) (string, error) {
	principal, ok := principalFromContext(ctx)
	if !ok || principal.UserID == "" {
		return "", fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized)
	}
	return principal.UserID, nil
}
