package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	authenticationv1 "k8s.io/api/authentication/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"
)

// TokenRequestMinter mints short-lived service account tokens through the
// Kubernetes TokenRequest API. The service account is created on first use
// when it does not exist yet.
type TokenRequestMinter struct {
	clientset kubernetes.Interface
	namespace string
	name      string

	// ExpirationSeconds for minted tokens; defaults to one hour.
	ExpirationSeconds int64
}

// NewTokenRequestMinter creates a minter for the given service account.
func NewTokenRequestMinter(clientset kubernetes.Interface, namespace, name string) *TokenRequestMinter {
	return &TokenRequestMinter{
		clientset: clientset,
		namespace: namespace,
		name:      name,
	}
}

// Mint ensures the service account exists and requests a token for it.
// A forbidden response is reported as a *PolicyDenialError.
func (m *TokenRequestMinter) Mint(ctx context.Context) (string, error) {
	subject := fmt.Sprintf("serviceaccount %s/%s", m.namespace, m.name)

	sa := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      m.name,
			Namespace: m.namespace,
		},
	}
	_, err := m.clientset.CoreV1().ServiceAccounts(m.namespace).Create(ctx, sa, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		if apierrors.IsForbidden(err) {
			return "", &PolicyDenialError{Subject: subject, Err: err}
		}
		return "", fmt.Errorf("failed to ensure %s: %w", subject, err)
	}

	expiration := m.ExpirationSeconds
	if expiration <= 0 {
		expiration = 3600
	}
	request := &authenticationv1.TokenRequest{
		Spec: authenticationv1.TokenRequestSpec{
			ExpirationSeconds: ptr.To(expiration),
		},
	}
	response, err := m.clientset.CoreV1().ServiceAccounts(m.namespace).CreateToken(ctx, m.name, request, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsForbidden(err) {
			return "", &PolicyDenialError{Subject: subject, Err: err}
		}
		return "", fmt.Errorf("failed to mint token for %s: %w", subject, err)
	}
	return response.Status.Token, nil
}

// HTTPMinter mints tokens through the gateway's own token endpoint,
// authenticating with a bootstrap identity.
type HTTPMinter struct {
	client    *http.Client
	endpoint  string
	bootstrap string

	// Expiration requested for minted tokens, e.g. "4h". Empty lets the
	// server pick.
	Expiration string
}

// NewHTTPMinter creates a minter that POSTs to baseURL's /v1/tokens
// endpoint using the bootstrap token for authorization.
func NewHTTPMinter(client *http.Client, baseURL, bootstrapToken string) *HTTPMinter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPMinter{
		client:    client,
		endpoint:  baseURL + "/v1/tokens",
		bootstrap: bootstrapToken,
	}
}

// Mint requests a fresh token. HTTP 403 is reported as a
// *PolicyDenialError; everything else non-2xx fails with the body excerpt.
func (m *HTTPMinter) Mint(ctx context.Context) (string, error) {
	payload := map[string]string{}
	if m.Expiration != "" {
		payload["expiration"] = m.Expiration
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.bootstrap)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return "", &PolicyDenialError{
			Subject: "bootstrap identity",
			Err:     fmt.Errorf("token endpoint returned 403: %s", raw),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("malformed token response: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("token response carried no token")
	}
	return parsed.Token, nil
}
