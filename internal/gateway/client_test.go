package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srjmnh/student-ai/internal/records"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", WithToken("secret"), WithSessionSeed("seed"))
}

func TestHTTPClientSendsHeaders(t *testing.T) {
	var got http.Header
	var body map[string][]records.RecordDiff
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		assert.Equal(t, "/bulk_update", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	err := client.BulkUpdateRecords(context.Background(), []records.RecordDiff{{ID: "1", Name: "Asha"}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "seed-bulk-update-1", got.Get("Idempotency-Key"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	require.Len(t, body["updates"], 1)
	assert.Equal(t, "Asha", body["updates"][0].Name)
}

func TestHTTPClientMapsSuccessFalse(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"stale id"}`))
	})
	err := client.BulkUpdateRecords(context.Background(), nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "stale id", remote.Message)
}

func TestHTTPClientMapsErrorStatus(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Missing student 'id' for deletion."}`))
	})
	_, err := client.DeleteRecord(context.Background(), "")
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.Status)
	assert.Equal(t, "Missing student 'id' for deletion.", remote.Message)
}

func TestHTTPClientMapsNonJSONFailure(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream   exploded", http.StatusBadGateway)
	})
	_, err := client.FetchGrades(context.Background())
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.True(t, strings.HasPrefix(remote.Message, "http 502: upstream exploded"))
}

func TestHTTPClientWrapsTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(url)
	_, err := client.ListStudents(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestHTTPClientDecodesLenientPayloads(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/grades":
			_, _ = w.Write([]byte(`{"grades":[{"subject_id":"S1","student_id":"42","term1":"85","term2":null,"term3":"x"}]}`))
		case "/unique_class_divisions":
			_, _ = w.Write([]byte(`{"class_divisions":["5-B","6-A"]}`))
		case "/update_grade":
			var unit records.GradeUnit
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&unit))
			assert.Equal(t, "term2", unit.Term)
			_, _ = w.Write([]byte(`{"message":"saved"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	grades, err := client.FetchGrades(ctx)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, records.FlexInt(85), grades[0].Term1)
	assert.Equal(t, records.FlexInt(0), grades[0].Term3)

	groups, err := client.ListUniqueGroupings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"5-B", "6-A"}, groups)

	msg, err := client.UpdateGradeUnit(ctx, records.GradeUnit{SubjectID: "S1", StudentID: "42", Term: "term2", Marks: 70})
	require.NoError(t, err)
	assert.Equal(t, "saved", msg)
}

func TestKeyFactorySequence(t *testing.T) {
	k := newKeyFactory("s")
	assert.Equal(t, "s-delete-student-1", k.next("Delete Student"))
	assert.Equal(t, "s-op-2", k.next("!!"))
	assert.True(t, strings.HasPrefix(newKeyFactory(" ").next("x"), "records-tui-"))
}

func TestCompactLineTruncatesByRune(t *testing.T) {
	got := compactLine("échec   de  la requête", 4)
	assert.Equal(t, "éche...", got)
	assert.True(t, utf8.ValidString(compactLine(strings.Repeat("é", 300), 200)))
	assert.Equal(t, "empty body", compactLine("  \n ", 10))
}
