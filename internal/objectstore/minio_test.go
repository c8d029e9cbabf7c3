package objectstore

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedObject struct {
	body        []byte
	contentType string
}

// fakeS3 implements the handful of path-style S3 calls the client issues.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]storedObject
	buckets map[string]bool
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{objects: map[string]storedObject{}, buckets: map[string]bool{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	if key == "" {
		f.serveBucket(w, r, bucket)
		return
	}

	id := bucket + "/" + key
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		obj, ok := f.objects[id]
		if !ok {
			writeError(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Last-Modified", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.body)))
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.body)
		}
	case http.MethodPut:
		if src := r.Header.Get("X-Amz-Copy-Source"); src != "" {
			unescaped, _ := url.PathUnescape(strings.TrimPrefix(src, "/"))
			obj, ok := f.objects[unescaped]
			if !ok {
				writeError(w, http.StatusNotFound, "NoSuchKey")
				return
			}
			f.objects[id] = obj
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"etag"</ETag><LastModified>2024-01-01T00:00:00.000Z</LastModified></CopyObjectResult>`)
			return
		}
		body, err := readPayload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody")
			return
		}
		f.objects[id] = storedObject{body: body, contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) serveBucket(w http.ResponseWriter, r *http.Request, bucket string) {
	switch r.Method {
	case http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// readPayload accepts both plain bodies and aws-chunked streaming uploads.
func readPayload(r *http.Request) ([]byte, error) {
	if r.Header.Get("X-Amz-Decoded-Content-Length") == "" {
		return io.ReadAll(r.Body)
	}
	var out bytes.Buffer
	br := bufio.NewReader(r.Body)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err := br.ReadString('\n'); err != nil {
			return nil, err
		}
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func newTestClient(t *testing.T, fake *fakeS3) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c, err := New(Config{
		Endpoint:  u.Host,
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "testsecret",
		UseTLS:    false,
	})
	require.NoError(t, err)
	return c
}

func TestClient_PutGet(t *testing.T) {
	fake := newFakeS3("processed")
	c := newTestClient(t, fake)
	ctx := context.Background()

	key := "tenant_id=acme/dt=2024-01-01/processed/e1.json"
	require.NoError(t, c.Put(ctx, "processed", key, []byte(`{"a":1}`), "application/json"))

	body, err := c.Get(ctx, "processed", key)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))
	assert.Equal(t, "application/json", fake.objects["processed/"+key].contentType)
}

func TestClient_GetMissing(t *testing.T) {
	c := newTestClient(t, newFakeS3("raw"))

	_, err := c.Get(context.Background(), "raw", "tenant_id=acme/missing.json")
	assert.Error(t, err)
}

func TestClient_CopyRemove(t *testing.T) {
	fake := newFakeS3("raw")
	fake.objects["raw/tenant_id=acme/bad.json"] = storedObject{body: []byte("not valid json")}
	c := newTestClient(t, fake)
	ctx := context.Background()

	dst := "quarantine/dt=2024-01-01/0b8f.json"
	require.NoError(t, c.Copy(ctx, "raw", "tenant_id=acme/bad.json", dst))
	require.NoError(t, c.Remove(ctx, "raw", "tenant_id=acme/bad.json"))

	_, stillThere := fake.objects["raw/tenant_id=acme/bad.json"]
	assert.False(t, stillThere)
	assert.Equal(t, "not valid json", string(fake.objects["raw/"+dst].body))
}

func TestClient_CopyMissingSource(t *testing.T) {
	c := newTestClient(t, newFakeS3("raw"))

	err := c.Copy(context.Background(), "raw", "tenant_id=acme/gone.json", "quarantine/x.json")
	assert.Error(t, err)
}

func TestClient_EnsureBucket(t *testing.T) {
	fake := newFakeS3("raw")
	c := newTestClient(t, fake)
	ctx := context.Background()

	require.NoError(t, c.EnsureBucket(ctx, "raw"))
	require.NoError(t, c.EnsureBucket(ctx, "processed"))
	assert.True(t, fake.buckets["processed"])
}

func TestCredentialsFor(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "env-access")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")
	t.Setenv("AWS_SESSION_TOKEN", "env-token")

	static, err := credentialsFor(Config{AccessKey: "a", SecretKey: "s"}).Get()
	require.NoError(t, err)
	assert.Equal(t, "a", static.AccessKeyID)
	assert.Empty(t, static.SessionToken)

	chained, err := credentialsFor(Config{}).Get()
	require.NoError(t, err)
	assert.Equal(t, "env-access", chained.AccessKeyID)
	assert.Equal(t, "env-token", chained.SessionToken)
}
