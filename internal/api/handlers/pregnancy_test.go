package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shivanandham/pregnancy-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPregnancyHandler(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	ts := testutil.NewTestServer(t, testDB, nil)

	t.Run("set and get round trip", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-preg", "preg@example.com", "Preg User")

		// Due in 20 weeks, so currently around week 21.
		dueDate := time.Now().AddDate(0, 0, 20*7).Format("2006-01-02")
		body, _ := json.Marshal(map[string]string{"dueDate": dueDate})

		set := testutil.AuthedRequest(t, http.MethodPut, ts.APIURL("/pregnancy"), tokens.SessionToken, bytes.NewBuffer(body))
		defer set.Body.Close()
		require.Equal(t, http.StatusOK, set.StatusCode)

		get := testutil.AuthedRequest(t, http.MethodGet, ts.APIURL("/pregnancy"), tokens.SessionToken, nil)
		defer get.Body.Close()
		require.Equal(t, http.StatusOK, get.StatusCode)

		var data struct {
			DueDate     time.Time `json:"dueDate"`
			CurrentWeek *int      `json:"currentWeek"`
		}
		testutil.DecodeData(t, get, &data)
		assert.Equal(t, dueDate, data.DueDate.Format("2006-01-02"))
		require.NotNil(t, data.CurrentWeek)
		assert.InDelta(t, 21, *data.CurrentWeek, 1)
	})

	t.Run("set replaces the previous due date", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-preg-2", "preg2@example.com", "Preg User")

		first, _ := json.Marshal(map[string]string{"dueDate": "2027-01-01"})
		resp := testutil.AuthedRequest(t, http.MethodPut, ts.APIURL("/pregnancy"), tokens.SessionToken, bytes.NewBuffer(first))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		second, _ := json.Marshal(map[string]string{"dueDate": "2027-02-15"})
		resp = testutil.AuthedRequest(t, http.MethodPut, ts.APIURL("/pregnancy"), tokens.SessionToken, bytes.NewBuffer(second))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		get := testutil.AuthedRequest(t, http.MethodGet, ts.APIURL("/pregnancy"), tokens.SessionToken, nil)
		defer get.Body.Close()

		var data struct {
			DueDate time.Time `json:"dueDate"`
		}
		testutil.DecodeData(t, get, &data)
		assert.Equal(t, "2027-02-15", data.DueDate.Format("2006-01-02"))
	})

	t.Run("invalid date format", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-preg-3", "preg3@example.com", "Preg User")

		body, _ := json.Marshal(map[string]string{"dueDate": "next spring"})
		resp := testutil.AuthedRequest(t, http.MethodPut, ts.APIURL("/pregnancy"), tokens.SessionToken, bytes.NewBuffer(body))
		defer resp.Body.Close()
		testutil.AssertErrorEnvelope(t, resp, http.StatusBadRequest, "Due date must be YYYY-MM-DD")
	})

	t.Run("get without a record", func(t *testing.T) {
		testDB.Truncate(t)
		tokens := testutil.Authenticate(t, ts, "uid-preg-4", "preg4@example.com", "Preg User")

		resp := testutil.AuthedRequest(t, http.MethodGet, ts.APIURL("/pregnancy"), tokens.SessionToken, nil)
		defer resp.Body.Close()
		testutil.AssertErrorEnvelope(t, resp, http.StatusNotFound, "No pregnancy record")
	})
}
