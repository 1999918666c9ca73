package handler

import (
	"context"
	"net/http"

	"github.com/go-bank-sync/internal/domain"
	"github.com/go-chi/chi/v5"
)

type TransferService interface {
	RequestTransfer(ctx context.Context, req domain.TransferRequest) (*domain.PendingTransfer, error)
	ConfirmTransfer(ctx context.Context, transferID, code string) (*domain.Transaction, error)
}

// DeviceState is the device's locally reconciled view.
type DeviceState interface {
	Profile() domain.Profile
	Policies(userID string) (domain.GlobalPolicy, domain.UserPolicy)
	Registry() []domain.RegistryUser
	PullAll(ctx context.Context) error
}

// DeviceHandler serves a device's local API. Reads never wait on the authority.
type DeviceHandler struct {
	transfers TransferService
	state     DeviceState
	userID    string
}

func NewDeviceHandler(transfers TransferService, state DeviceState, userID string) *DeviceHandler {
	return &DeviceHandler{transfers: transfers, state: state, userID: userID}
}

type deviceStateView struct {
	UserID       string                `json:"userId"`
	Profile      domain.Profile        `json:"profile"`
	GlobalPolicy domain.GlobalPolicy   `json:"globalPolicy"`
	UserPolicy   domain.UserPolicy     `json:"userPolicy"`
	Registry     []domain.RegistryUser `json:"registry"`
}

func (h *DeviceHandler) view() deviceStateView {
	g, u := h.state.Policies(h.userID)
	users := h.state.Registry()
	safe := make([]domain.RegistryUser, len(users))
	for i, ru := range users {
		ru.Credential = ""
		safe[i] = ru
	}
	return deviceStateView{
		UserID:       h.userID,
		Profile:      h.state.Profile(),
		GlobalPolicy: g,
		UserPolicy:   u,
		Registry:     safe,
	}
}

func (h *DeviceHandler) State(w http.ResponseWriter, _ *http.Request) {
	writeData(w, h.view())
}

// Pull forces a sync of every family. Failures leave local state in place and
// are reported alongside it.
func (h *DeviceHandler) Pull(w http.ResponseWriter, r *http.Request) {
	if err := h.state.PullAll(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Success: false,
			Message: "authority unreachable, showing local state",
			Data:    h.view(),
		})
		return
	}
	writeData(w, h.view())
}

func (h *DeviceHandler) RequestTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	// The sender is always the device's signed-in user, whatever the body says.
	req.UserID = h.userID
	req.From = h.state.Profile().Email
	pt, err := h.transfers.RequestTransfer(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Envelope{Success: true, Message: "verification code sent", Data: pt})
}

func (h *DeviceHandler) ConfirmTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	tx, err := h.transfers.ConfirmTransfer(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: tx.Status == domain.TxStatusCompleted, Message: tx.Message, Data: tx})
}
