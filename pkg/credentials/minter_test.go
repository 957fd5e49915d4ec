package credentials_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authenticationv1 "k8s.io/api/authentication/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"

	"maas-gateway-verifier/pkg/credentials"
)

func TestTokenRequestMinter_MintsToken(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	clientset.PrependReactor("create", "serviceaccounts/token", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, &authenticationv1.TokenRequest{
			Status: authenticationv1.TokenRequestStatus{Token: "sa-token"},
		}, nil
	})
	minter := credentials.NewTokenRequestMinter(clientset, "opendatahub", "e2e-verifier")

	token, err := minter.Mint(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "sa-token", token)

	// Service account was created as a side effect.
	sa, err := clientset.CoreV1().ServiceAccounts("opendatahub").Get(context.Background(), "e2e-verifier", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "e2e-verifier", sa.Name)
}

func TestTokenRequestMinter_ExistingServiceAccountIsReused(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	clientset.PrependReactor("create", "serviceaccounts/token", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, &authenticationv1.TokenRequest{
			Status: authenticationv1.TokenRequestStatus{Token: "sa-token"},
		}, nil
	})
	minter := credentials.NewTokenRequestMinter(clientset, "opendatahub", "e2e-verifier")

	_, err := minter.Mint(context.Background())
	require.NoError(t, err)
	token, err := minter.Mint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sa-token", token)
}

func TestTokenRequestMinter_ForbiddenIsPolicyDenial(t *testing.T) {
	clientset := k8sfake.NewSimpleClientset()
	gr := schema.GroupResource{Resource: "serviceaccounts"}
	clientset.PrependReactor("create", "serviceaccounts/token", func(action clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(gr, "e2e-verifier", nil)
	})
	minter := credentials.NewTokenRequestMinter(clientset, "opendatahub", "e2e-verifier")

	_, err := minter.Mint(context.Background())

	var denial *credentials.PolicyDenialError
	require.ErrorAs(t, err, &denial)
	assert.Contains(t, denial.Subject, "opendatahub/e2e-verifier")
}

func TestHTTPMinter_MintsToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/tokens", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "http-token"}`))
	}))
	defer server.Close()

	minter := credentials.NewHTTPMinter(server.Client(), server.URL, "bootstrap")
	token, err := minter.Mint(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "http-token", token)
	assert.Equal(t, "Bearer bootstrap", gotAuth)
}

func TestHTTPMinter_ForbiddenIsPolicyDenial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tier not entitled", http.StatusForbidden)
	}))
	defer server.Close()

	minter := credentials.NewHTTPMinter(server.Client(), server.URL, "bootstrap")
	_, err := minter.Mint(context.Background())

	var denial *credentials.PolicyDenialError
	require.ErrorAs(t, err, &denial)
	assert.Contains(t, denial.Error(), "tier not entitled")
}

func TestHTTPMinter_ServerErrorIsNotDenial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	minter := credentials.NewHTTPMinter(server.Client(), server.URL, "bootstrap")
	_, err := minter.Mint(context.Background())

	require.Error(t, err)
	var denial *credentials.PolicyDenialError
	assert.False(t, errors.As(err, &denial))
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPMinter_EmptyTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	minter := credentials.NewHTTPMinter(server.Client(), server.URL, "bootstrap")
	_, err := minter.Mint(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}
