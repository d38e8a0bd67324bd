package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/quipper/poc/spotify-auth/be/pkg/common/logger"
	"github.com/quipper/poc/spotify-auth/be/pkg/spotify"
)

const errStateMismatch = "state_mismatch"

// callback receives the provider redirect, checks state and exchanges the code.
// Every outcome, success or failure, is delivered to the return URL.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	storedState := h.readFlowCookie(r, stateCookie)
	storedReturnURL := h.readFlowCookie(r, returnURLCookie)

	// Single use, whatever happens next.
	h.clearFlowCookie(w, r, stateCookie)
	h.clearFlowCookie(w, r, returnURLCookie)

	returnURL := h.defaultReturnURL(r)
	if storedReturnURL != "" && h.validReturnURL(storedReturnURL, r) {
		returnURL = storedReturnURL
	}
	log := logger.FromRequest(r).WithField("returnUrl", returnURL)

	if state == "" || state != storedState {
		log.Warn("callback: state mismatch")
		h.metrics.FlowResult("callback", errStateMismatch)
		redirectResult(w, r, returnURL, url.Values{"error": {errStateMismatch}})
		return
	}

	if h.states != nil {
		ledgerReturnURL, ok, err := h.states.ConsumeState(r.Context(), state)
		if err != nil {
			log.Errorf("callback: consume state: %v", err)
			h.metrics.FlowResult("callback", "server_error")
			redirectResult(w, r, returnURL, url.Values{"error": {"server_error"}})
			return
		}
		if !ok {
			log.Warn("callback: state unknown or already used")
			h.metrics.FlowResult("callback", errStateMismatch)
			redirectResult(w, r, returnURL, url.Values{"error": {errStateMismatch}})
			return
		}
		returnURL = ledgerReturnURL
	}

	// The user declined consent, or the provider refused the request.
	if providerErr := q.Get("error"); code == "" && providerErr != "" {
		log.WithField("error", providerErr).Info("callback: provider returned error")
		h.metrics.FlowResult("callback", "provider_error")
		redirectResult(w, r, returnURL, url.Values{"error": {providerErr}})
		return
	}

	raw, err := h.tokens.ExchangeCode(r.Context(), code, h.redirectURI(r))
	if err != nil {
		log.Warnf("callback: exchange code: %v", err)
		h.metrics.FlowResult("callback", "exchange_failed")
		redirectResult(w, r, returnURL, url.Values{"error": {upstreamErrorText(err)}})
		return
	}

	params, err := flattenTokenResponse(raw)
	if err != nil {
		log.Warnf("callback: token response: %v", err)
		h.metrics.FlowResult("callback", "exchange_failed")
		redirectResult(w, r, returnURL, url.Values{"error": {statusText(http.StatusBadGateway)}})
		return
	}
	h.metrics.FlowResult("callback", "ok")
	redirectResult(w, r, returnURL, params)
}

// redirectResult sends the browser to returnURL with params merged into its query.
func redirectResult(w http.ResponseWriter, r *http.Request, returnURL string, params url.Values) {
	target := returnURL + "?" + params.Encode()
	if u, err := url.Parse(returnURL); err == nil {
		q := u.Query()
		for k, v := range params {
			q[k] = v
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// upstreamErrorText renders a token endpoint failure as "Status <code>: <text>".
// Failures without an upstream response are reported as a bad gateway.
func upstreamErrorText(err error) string {
	var upstream *spotify.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Error()
	}
	return statusText(http.StatusBadGateway)
}

func statusText(code int) string {
	return fmt.Sprintf("Status %d: %s", code, http.StatusText(code))
}

// flattenTokenResponse turns a JSON object into query parameters the way a
// form encoder would: scalars as text, arrays as repeated keys, and nulls
// or nested objects as empty values.
func flattenTokenResponse(raw json.RawMessage) (url.Values, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if fields == nil {
		return nil, errors.New("token response is not a JSON object")
	}

	params := url.Values{}
	for k, v := range fields {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				params.Add(k, scalarText(item))
			}
			continue
		}
		params.Set(k, scalarText(v))
	}
	return params, nil
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
