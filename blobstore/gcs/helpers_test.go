package gcs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func createBucket(t *testing.T, endpoint string) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"name": bucket})
	require.NoError(t, err)

	resp, err := http.Post(endpoint+"/storage/v1/b", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode, "create bucket")
}
