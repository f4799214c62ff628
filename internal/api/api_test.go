package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/crdt"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/testutil"
)

// testEnv sets up a temp vault, session, and router for testing.
// authToken="" means disabled auth mode.
func testEnv(t *testing.T, authToken string) (*session.Session, http.Handler) {
	t.Helper()
	sess := testutil.TestSession(t)
	router := NewRouter(sess, authToken != "", authToken, "local", nil, nil)
	return sess, router
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": "Hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" || created.Metadata.Title != "Hello" {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, router, http.MethodGet, "/documents/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Metadata.Title != "Hello" {
		t.Errorf("title = %q, want Hello", got.Metadata.Title)
	}
	if got.Checksum == "" {
		t.Error("detail missing checksum")
	}
	if got.Backlinks == nil {
		t.Error("detail backlinks should be non-nil")
	}
}

func TestCreateValidation(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty title status = %d, want 400", w.Code)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/documents/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSaveBodyAcceptedAndFlushed(t *testing.T) {
	sess, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": "note"})
	var doc models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &doc)

	d := crdt.NewDoc()
	d.SetBlocks([]crdt.Block{{Type: crdt.BlockParagraph, Text: "hello"}})
	encoded := codec.Encode(d)

	w = doJSON(t, router, http.MethodPut, "/documents/"+doc.ID+"/body", map[string]string{"body": encoded})
	if w.Code != http.StatusAccepted {
		t.Fatalf("save status = %d", w.Code)
	}

	sess.Flush()
	got, err := sess.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Body != encoded {
		t.Errorf("body = %q, want flushed state", got.Body)
	}
}

func TestPatchMetadata(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": "before"})
	var doc models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &doc)

	w = doJSON(t, router, http.MethodPatch, "/documents/"+doc.ID, map[string]any{
		"title": "after",
		"tags":  []string{"a", "b"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	var got models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Metadata.Title != "after" || len(got.Metadata.Tags) != 2 {
		t.Errorf("metadata = %+v", got.Metadata)
	}
}

func TestDeleteDocument(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": "gone"})
	var doc models.Document
	_ = json.Unmarshal(w.Body.Bytes(), &doc)

	w = doJSON(t, router, http.MethodDelete, "/documents/"+doc.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/documents/"+doc.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestStructureMoveEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	var ids []string
	for _, title := range []string{"x", "y", "z"} {
		w := doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": title})
		var doc models.Document
		_ = json.Unmarshal(w.Body.Bytes(), &doc)
		ids = append(ids, doc.ID)
	}

	w := doJSON(t, router, http.MethodPost, "/structure/move", map[string]string{
		"active_id": ids[0], "target_id": ids[2], "kind": "reorder",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("move status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/structure", nil)
	var st models.VaultStructure
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st[ids[0]].Order != 2 || st[ids[1]].Order != 0 || st[ids[2]].Order != 1 {
		t.Errorf("orders after move = %+v", st)
	}
}

func TestStructureMoveValidation(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/structure/move", map[string]string{
		"active_id": "a", "target_id": "b", "kind": "teleport",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad kind status = %d, want 400", w.Code)
	}
}

func TestSearchByTitle(t *testing.T) {
	_, router := testEnv(t, "")

	for _, title := range []string{"Project Plan", "plan b", "unrelated"} {
		doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": title})
	}

	w := doJSON(t, router, http.MethodGet, "/search?q=plan", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp struct {
		Results []SearchResult `json:"results"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 2 {
		t.Errorf("results = %+v, want 2 matches", resp.Results)
	}

	w = doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", w.Code)
	}
}

func TestIndexEndpointExposesBacklinks(t *testing.T) {
	sess, router := testEnv(t, "")
	ctx := context.Background()

	target, _ := sess.CreateDocument(ctx, "target")
	source, _ := sess.CreateDocument(ctx, "source")
	d := crdt.NewDoc()
	d.SetBlocks([]crdt.Block{{Type: crdt.BlockParagraph, Text: "[[" + target.ID + "]]"}})
	sess.SaveBody(source.ID, codec.Encode(d))
	sess.Flush()
	title := "source"
	if _, err := sess.UpdateMetadata(ctx, source.ID, session.MetadataPatch{Title: &title}); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	w := doJSON(t, router, http.MethodGet, "/index", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("index status = %d", w.Code)
	}
	var idx models.VaultIndex
	_ = json.Unmarshal(w.Body.Bytes(), &idx)
	back := idx.Documents[target.ID].Backlinks
	if len(back) != 1 || back[0] != source.ID {
		t.Errorf("backlinks = %v", back)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	doJSON(t, router, http.MethodPost, "/documents", map[string]string{"title": "one"})

	w := doJSON(t, router, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Loaded || !resp.Connected || !resp.Synced || resp.Documents != 1 {
		t.Errorf("status = %+v", resp)
	}
	if resp.Backend != "local" {
		t.Errorf("backend = %q", resp.Backend)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token status = %d, want 200", w.Code)
	}
}
