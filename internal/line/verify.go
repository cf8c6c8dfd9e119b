package line

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultVerifyURL is the LINE OAuth ID-token verification endpoint.
const DefaultVerifyURL = "https://api.line.me/oauth2/v2.1/verify"

// ErrIDTokenInvalid indicates the ID token failed verification.
var ErrIDTokenInvalid = errors.New("line: id token invalid")

// IDTokenVerifier resolves a LIFF ID token to the LINE user id it was issued
// for. The verification endpoint and HTTP client are injectable for tests.
type IDTokenVerifier struct {
	channelID  string
	verifyURL  string
	httpClient *http.Client
}

// NewIDTokenVerifier constructs a verifier for the given LIFF channel id.
func NewIDTokenVerifier(channelID string) *IDTokenVerifier {
	return &IDTokenVerifier{
		channelID:  channelID,
		verifyURL:  DefaultVerifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewIDTokenVerifierWithEndpoint constructs a verifier against a custom
// verification endpoint.
func NewIDTokenVerifierWithEndpoint(channelID, verifyURL string, httpClient *http.Client) *IDTokenVerifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &IDTokenVerifier{channelID: channelID, verifyURL: verifyURL, httpClient: httpClient}
}

// Verify checks the ID token against the LINE OAuth endpoint and returns the
// subject (LINE user id). An unconfigured channel id fails closed.
func (v *IDTokenVerifier) Verify(ctx context.Context, idToken string) (string, error) {
	if v == nil || v.channelID == "" {
		return "", ErrIDTokenInvalid
	}
	if strings.TrimSpace(idToken) == "" {
		return "", ErrIDTokenInvalid
	}

	form := url.Values{}
	form.Set("id_token", idToken)
	form.Set("client_id", v.channelID)

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if errReq != nil {
		return "", fmt.Errorf("line: build verify request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, errDo := v.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("line: verify id token: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", ErrIDTokenInvalid
	}

	var payload struct {
		Sub string `json:"sub"`
	}
	if errDecode := json.NewDecoder(resp.Body).Decode(&payload); errDecode != nil {
		return "", fmt.Errorf("line: decode verify response: %w", errDecode)
	}
	if payload.Sub == "" {
		return "", ErrIDTokenInvalid
	}
	return payload.Sub, nil
}
