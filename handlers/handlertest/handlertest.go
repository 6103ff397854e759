// Package handlertest builds the Redis, data directory and service graph the
// handler tests run against.
package handlertest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/services/catalog"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
	"github.com/stretchr/testify/require"
)

// Env is one API process over a private Redis and data directory.
type Env struct {
	Dir      string
	Redis    *miniredis.Miniredis
	Provider *cache.ClientProvider
	Store    *datastore.Store
	Catalog  *catalog.Service
	Cache    *cache.Store
}

// Envelope is the decoded response wrapper.
type Envelope struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message"`
	Data       json.RawMessage          `json:"data"`
	Error      *response.ErrorDetail    `json:"error"`
	Pagination *response.PaginationMeta `json:"pagination"`
}

// NewEnv writes the sample data set and wires the services over miniredis.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, dir, "Uttar_Pradesh_Colleges.json", `{"institutions":[
		{"id":"iit-kanpur","name":"Indian Institute of Technology Kanpur","shortName":"IIT Kanpur","location":"Kanpur, Uttar Pradesh","state":"Uttar Pradesh","rankingTier":"Tier 1","acceptedExams":["jee-advanced"],"courses":[{"name":"BTech","duration":4}]},
		{"id":"bhu","name":"Banaras Hindu University","shortName":"BHU","location":"Varanasi, Uttar Pradesh","state":"Uttar Pradesh","rankingTier":"Tier 2","acceptedExams":["cuet"],"courses":[{"name":"BA"}]}
	]}`)
	WriteFile(t, dir, "Goa_Colleges.json", `[
		{"id":"goa-uni","name":"Goa University","location":"Taleigao, Goa","state":"Goa","rankingTier":"Tier 3","acceptedExams":["cuet"],"meta":{"district":"North Goa"}}
	]`)
	WriteFile(t, dir, "exams.json", `[
		{"id":"jee-advanced","name":"Joint Entrance Examination Advanced","shortName":"JEE Advanced","type":"Engineering","collegesAccepting":["iit-kanpur"]},
		{"id":"cuet","name":"Common University Entrance Test","shortName":"CUET","type":"General","acceptedColleges":["bhu","goa-uni"]}
	]`)

	mr := miniredis.RunT(t)
	provider := cache.NewClientProvider("redis://" + mr.Addr())
	t.Cleanup(func() { _ = provider.Close() })

	store := datastore.NewStore(provider, datastore.Options{DataDir: dir})
	return &Env{
		Dir:      dir,
		Redis:    mr,
		Provider: provider,
		Store:    store,
		Catalog:  catalog.NewService(store),
		Cache:    cache.NewStore(provider),
	}
}

// WriteFile writes content to dir/name.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// Do sends a request through app. A non-nil body is JSON encoded.
func Do(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// Decode unmarshals an envelope and, when data is non-nil, its data field.
func Decode(t *testing.T, raw []byte, data interface{}) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}
