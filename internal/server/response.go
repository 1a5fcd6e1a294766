package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"arenaevo/internal/bot"
	"arenaevo/internal/evo"
	"arenaevo/internal/fitness"
	"arenaevo/internal/game"
	"arenaevo/internal/genome"
	"arenaevo/internal/platform"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, platform.ErrUnknownBot), errors.Is(err, platform.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, platform.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest),
		errors.Is(err, platform.ErrKindMismatch),
		errors.Is(err, game.ErrUnknownGame),
		errors.Is(err, bot.ErrUnknownKind),
		errors.Is(err, evo.ErrInvalidConfig),
		errors.Is(err, evo.ErrNoGeneticSide),
		errors.Is(err, genome.ErrInputMismatch),
		errors.Is(err, fitness.ErrInvalidBatch):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// decodeBody reads a JSON body into dst, rejecting unknown fields and
// trailing data.
func decodeBody(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(data) > maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxBodyBytes)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}
