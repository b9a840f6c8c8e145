// cmd/chat/routes.go
// Local HTTP control surface for the headless client

package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/MrBlankCoding/Channel-Chat/internal/chat"
	"github.com/MrBlankCoding/Channel-Chat/internal/common/utils"
	"github.com/MrBlankCoding/Channel-Chat/internal/gif"
	"github.com/MrBlankCoding/Channel-Chat/internal/notifications"
)

// controlHandler exposes the session's operations on the debug listener so
// the headless client can be driven by scripts and local tooling.
type controlHandler struct {
	session  *chat.Session
	uploads  *chat.UploadManager
	gifs     *gif.Client
	settings *notifications.SettingsClient
}

func (h *controlHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/messages", h.sendMessage).Methods("POST")
	api.HandleFunc("/messages/{id}", h.editMessage).Methods("PUT")
	api.HandleFunc("/messages/{id}", h.deleteMessage).Methods("DELETE")
	api.HandleFunc("/messages/{id}/reactions", h.toggleReaction).Methods("POST")
	api.HandleFunc("/messages/older", h.loadOlder).Methods("POST")
	api.HandleFunc("/messages/{id}/jump", h.jumpToMessage).Methods("POST")
	api.HandleFunc("/typing", h.typing).Methods("POST")
	api.HandleFunc("/active", h.setActive).Methods("POST")
	api.HandleFunc("/uploads", h.upload).Methods("POST")
	api.HandleFunc("/gifs", h.searchGIFs).Methods("GET")
	api.HandleFunc("/notifications/settings", h.getNotificationSettings).Methods("GET")
	api.HandleFunc("/notifications/settings", h.updateNotificationSettings).Methods("PUT")
}

type sendMessageRequest struct {
	Message string         `json:"message"`
	GIF     *gif.Result    `json:"gif,omitempty"`
	ReplyTo *chat.ReplyRef `json:"replyTo,omitempty"`
}

func (h *controlHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var err error
	if req.GIF != nil {
		err = h.session.SendGIF(r.Context(), chat.GIFAttachment{URL: req.GIF.URL, Title: req.GIF.Title}, req.ReplyTo)
	} else {
		err = h.session.SendText(r.Context(), req.Message, req.ReplyTo)
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type editMessageRequest struct {
	NewText string `json:"newText"`
}

func (h *controlHandler) editMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.session.EditMessage(r.Context(), id, req.NewText); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *controlHandler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.session.DeleteMessage(r.Context(), id); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type toggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *controlHandler) toggleReaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req toggleReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.session.ToggleReaction(r.Context(), id, req.Emoji); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *controlHandler) loadOlder(w http.ResponseWriter, r *http.Request) {
	if err := h.session.LoadOlder(r.Context()); err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (h *controlHandler) jumpToMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.session.JumpToMessage(r.Context(), id); err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

func (h *controlHandler) typing(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Keystroke(r.Context()); err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *controlHandler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.session.SetActive(r.Context(), req.Active); err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *controlHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "media uploads are not configured")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")

	start := time.Now()
	if err := h.uploads.SendMedia(r.Context(), file, header.Filename, contentType, nil); err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	log.Printf("Uploaded %s (%s) in %v", header.Filename, contentType, time.Since(start))

	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *controlHandler) searchGIFs(w http.ResponseWriter, r *http.Request) {
	if h.gifs == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "GIF search is not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "missing q parameter")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.gifs.Search(r.Context(), query, limit)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (h *controlHandler) getNotificationSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Fetch(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, settings)
}

func (h *controlHandler) updateNotificationSettings(w http.ResponseWriter, r *http.Request) {
	var settings notifications.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.settings.Update(r.Context(), settings); err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, settings)
}

func respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrMessageNotLoaded) {
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondWithError(w, http.StatusBadGateway, err.Error())
}
