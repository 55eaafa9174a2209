package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	identity "github.com/stocktrack/identity"
)

// errMalformedJSON is raised when a request body exists but does not decode.
// An empty body is not malformed: it simply leaves every field absent, and
// the engine's own missing-field checks take over from there.
var errMalformedJSON = &identity.Error{Kind: identity.KindValidation, Message: "Malformed JSON"}

// Request fields are pointers so that an absent field and an empty string
// stay distinguishable at the decode layer; both collapse to "" on the way
// into the engine, which owns the missing-input messages.

type loginRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type refreshRequest struct {
	RefreshToken *string `json:"refreshToken"`
	UID          *string `json:"uid"`
}

type setPasswordRequest struct {
	UID      *string `json:"uid"`
	Password *string `json:"password"`
}

type grantResponse struct {
	UID     string `json:"uid"`
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}

// decodeBody reads the request body into v. Decode failures of any shape
// (bad syntax, wrong types, trailing garbage) collapse to errMalformedJSON.
func decodeBody(c echo.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errMalformedJSON
	}
	if dec.More() {
		return errMalformedJSON
	}
	return nil
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	grant, err := s.engine.Login(c.Request().Context(), strOrEmpty(req.Username), strOrEmpty(req.Password))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grantResponse{
		UID:     grant.UID,
		Token:   grant.Token,
		Refresh: grant.Refresh,
	})
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	grant, err := s.engine.Refresh(c.Request().Context(), strOrEmpty(req.RefreshToken), strOrEmpty(req.UID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, grantResponse{
		UID:     grant.UID,
		Token:   grant.Token,
		Refresh: grant.Refresh,
	})
}

func (s *Server) handleSetPassword(c echo.Context) error {
	var req setPasswordRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	// Administrative callers advance the changed-at stamp; migration
	// tooling passes ?notime=1 to preserve historical timestamps.
	touch := c.QueryParam("notime") != "1"

	if err := s.engine.SetPassword(c.Request().Context(), strOrEmpty(req.UID), strOrEmpty(req.Password), touch); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
