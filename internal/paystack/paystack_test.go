package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_xyz", r.Header.Get("Authorization"))

		var req InitializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "buyer@example.com", req.Email)
		assert.Equal(t, int64(500000), req.AmountKobo)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         req.Reference,
			},
		})
	}))
	defer srv.Close()

	c := New("sk_test_xyz", srv.URL)

	res, err := c.Initialize(t.Context(), InitializeRequest{
		Email:      "buyer@example.com",
		AmountKobo: 500000,
		Reference:  "TeeRex-x-1",
		Currency:   "NGN",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc123", res.AuthorizationURL)
	assert.Equal(t, "TeeRex-x-1", res.Reference)
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/TeeRex-x-1", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "success",
				"reference": "TeeRex-x-1",
				"amount":    500000,
				"currency":  "NGN",
			},
		})
	}))
	defer srv.Close()

	c := New("sk_test_xyz", srv.URL)

	res, err := c.Verify(t.Context(), "TeeRex-x-1")

	require.NoError(t, err)
	assert.True(t, res.Paid())
	assert.Equal(t, int64(500000), res.AmountKobo)
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid amount",
		})
	}))
	defer srv.Close()

	c := New("sk_test_xyz", srv.URL)

	_, err := c.Initialize(t.Context(), InitializeRequest{Email: "x@y.z"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid amount")
}

func TestValidSignature(t *testing.T) {
	c := New("sk_test_xyz", "")
	body := []byte(`{"event":"charge.success","data":{"reference":"TeeRex-x-1"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_xyz"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.ValidSignature(body, sig))
	assert.False(t, c.ValidSignature(body, sig[:len(sig)-2]+"00"))
	assert.False(t, c.ValidSignature([]byte(`tampered`), sig))
	assert.False(t, c.ValidSignature(body, ""))
}
