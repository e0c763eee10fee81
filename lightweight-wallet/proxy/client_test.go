package proxy

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostConsignmentMultipartUpload(t *testing.T) {
	t.Parallel()

	var gotParams PostConsignmentParams
	var gotBlob []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/consignment.post", r.URL.Path)

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)

			switch part.FormName() {
			case "params":
				body, _ := io.ReadAll(part)
				require.NoError(t, json.Unmarshal(body, &gotParams))
			case "file":
				gotBlob, _ = io.ReadAll(part)
			}
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(postResult{Success: true})
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	err := client.PostConsignment(context.Background(), "recipient-1", []byte("ciphertext"))
	require.NoError(t, err)
	require.Equal(t, "recipient-1", gotParams.RecipientID)
	require.Equal(t, []byte("ciphertext"), gotBlob)
}

func TestGetConsignmentJSONRPC(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/json-rpc", r.URL.Path)

		var env rpcEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		require.Equal(t, "consignment.get", env.Method)

		resultJSON, _ := json.Marshal(getResult{Blob: []byte("ciphertext")})
		json.NewEncoder(w).Encode(rpcResponse{Result: resultJSON, ID: env.ID})
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	blob, err := client.GetConsignment(context.Background(), "recipient-1")
	require.NoError(t, err)
	require.Equal(t, []byte("ciphertext"), blob)
}

func TestGetConsignmentPropagatesRPCError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rpcResponse{Error: &rpcError{Code: 404, Message: "not found"}})
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL})
	_, err := client.GetConsignment(context.Background(), "missing")
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, (&Config{}).Validate(), errEmptyBaseURL)
	require.NoError(t, (&Config{BaseURL: "https://proxy.example"}).Validate())
}
