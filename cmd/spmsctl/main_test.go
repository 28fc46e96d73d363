package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceCommandPostsStage(t *testing.T) {
	var gotPath string
	var gotBody map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"request_id":"req_1","document":{"id":"doc_1","status":"inapproval"}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--base-url", srv.URL, "--token", "tok", "advance", "doc_1", "2"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "/workflow/documents/doc_1/actions/advance", gotPath)
	assert.Equal(t, 2, gotBody["stage"])
	assert.Contains(t, out.String(), `"inapproval"`)
}

func TestCommandsRequireToken(t *testing.T) {
	t.Setenv("SPMS_TOKEN", "")
	root := newRootCmd()
	root.SetArgs([]string{"pending"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestSpawnCommandFailsOnPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"request_id":"req_1","error":{"code":"SPAWN_INCOMPLETE","message":"1 error occurred"},"result":{"year":2024,"created":["doc_a"],"failed":[{"project_id":"prj_b","reason":"boom"}]}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--base-url", srv.URL, "--token", "tok", "spawn", "ar_2024"})
	err := root.Execute()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "1 project"))
	assert.Contains(t, out.String(), "doc_a")
}

func TestCreateCommandSendsAnnualReport(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"request_id":"req_2","document":{"id":"doc_r","kind":"studentreport","status":"new"}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--base-url", srv.URL, "--token", "tok", "create", "prj_1", "studentreport", "--annual-report", "ar_2024"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "/workflow/projects/prj_1/documents", gotPath)
	assert.Equal(t, map[string]string{"kind": "studentreport", "annual_report_id": "ar_2024"}, gotBody)
	assert.Contains(t, out.String(), "doc_r")
}
