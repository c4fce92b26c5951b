package sheets

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/google"
	"github.com/sells-group/leadflow/pkg/google/mocks"
)

var contactHeader = []string{"Name", "Email", "Company", "Position", "Scheduled_For", "Status"}

func TestGetBlacklist(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Blacklist!1:1": {{"id", "note", "Email"}},
		"Blacklist!C:C": {{"Email"}, {"  Spam@Example.com "}, {}, {""}, {"bad@x.io"}},
	})
	c := testClient(values, &recordingSleep{})

	got, err := c.GetBlacklist(context.Background(), "bl-sheet", "Blacklist")
	require.NoError(t, err)
	assert.Equal(t, []string{"spam@example.com", "bad@x.io"}, got)
	assert.Equal(t, []string{"Blacklist!1:1", "Blacklist!C:C"}, values.gets)
}

func TestGetBlacklist_MissingEmailColumn(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1!1:1": {{"address", "note"}},
	})
	c := testClient(values, &recordingSleep{})

	_, err := c.GetBlacklist(context.Background(), "bl-sheet", "Sheet1")
	var serr *StructureError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, []string{"email"}, serr.Missing)
	assert.Len(t, values.gets, 1, "structural errors are not retried")
}

func TestGetBlacklist_EmptySheet(t *testing.T) {
	c := testClient(newFakeValues(nil), &recordingSleep{})

	_, err := c.GetBlacklist(context.Background(), "bl-sheet", "Sheet1")
	var serr *StructureError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "sheet is empty", serr.Reason)
}

func TestGetBlacklist_QuotesTabNames(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"'Do Not Send'!1:1": {{"email"}},
		"'Do Not Send'!A:A": {{"email"}, {"a@b.co"}},
	})
	c := testClient(values, &recordingSleep{})

	got, err := c.GetBlacklist(context.Background(), "bl", "Do Not Send")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.co"}, got)
}

func TestGetContacts(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Contacts": {
			contactHeader,
			{"Jana  Nováková", "jana@acme.cz", "Acme", "CTO", "2026-03-01T09:00:00.000Z", "Pending"},
			{"Prince", "prince@purple.com", "", "", "", "Blacklisted"},
			{"", "noname@x.com", "X", "Y", "", ""},
			{"No Email", "", "X", "Y", "", ""},
			{"Ann Marie Lee", "ann@lee.dev", "Lee LLC", "Owner", "not a date", "sent"},
		},
	})
	c := testClient(values, &recordingSleep{})

	got, err := c.GetContacts(context.Background(), "contacts", "Contacts", model.ColumnMappings{ScheduledFor: "scheduled_for"})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Jana", got[0].FirstName)
	assert.Equal(t, "Nováková", got[0].LastName)
	assert.Equal(t, 2, got[0].Row)
	require.NotNil(t, got[0].ScheduledFor)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), *got[0].ScheduledFor)
	assert.Equal(t, model.ContactStatusPending, got[0].Status)

	assert.Equal(t, "Prince", got[1].FirstName)
	assert.Empty(t, got[1].LastName)
	assert.Equal(t, model.UnknownCompany, got[1].Company)
	assert.Equal(t, model.UnknownPosition, got[1].Position)
	assert.Equal(t, model.ContactStatusBlacklist, got[1].Status)
	assert.Nil(t, got[1].ScheduledFor)

	assert.Equal(t, "Marie Lee", got[2].LastName)
	assert.Equal(t, 6, got[2].Row)
	assert.Nil(t, got[2].ScheduledFor)
	assert.Equal(t, model.ContactStatusSent, got[2].Status)
}

func TestGetContacts_CustomMappings(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Leads": {
			{"Jméno", "E-mail", "Firma", "Pozice", "Termín", "Stav"},
			{"Petr Novák", "petr@firma.cz", "Firma s.r.o.", "CEO", "", ""},
		},
	})
	c := testClient(values, &recordingSleep{})

	got, err := c.GetContacts(context.Background(), "contacts", "Leads", model.ColumnMappings{
		Name: "jméno", Email: "e-mail", Company: "firma", Position: "pozice", ScheduledFor: "termín", Status: "stav",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "petr@firma.cz", got[0].Email)
	assert.Equal(t, "Firma s.r.o.", got[0].Company)
}

func TestGetContacts_MissingColumns(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1": {{"name", "email", "company"}},
	})
	c := testClient(values, &recordingSleep{})

	_, err := c.GetContacts(context.Background(), "contacts", "Sheet1", model.ColumnMappings{})
	var serr *StructureError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, []string{"position", "scheduled_for", "status"}, serr.Missing)
}

func TestGet_RetriesRateLimitFiveTimes(t *testing.T) {
	values := mocks.NewMockSheetsClient(t)
	values.On("Get", mock.Anything, "contacts", "Sheet1").
		Return(nil, &google.APIError{StatusCode: http.StatusTooManyRequests, Message: "quota"}).
		Times(5)

	rec := &recordingSleep{}
	c := testClient(values, rec)

	_, err := c.GetContacts(context.Background(), "contacts", "Sheet1", model.ColumnMappings{})
	require.Error(t, err)

	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusTooManyRequests, uerr.StatusCode)
	assert.Equal(t, "get_contacts", uerr.Op)

	require.Len(t, rec.delays, 4)
	for i, d := range rec.delays {
		base := time.Second << i
		assert.GreaterOrEqual(t, d, base, "attempt %d", i)
		assert.Less(t, d, base+time.Second, "attempt %d", i)
	}
}

func TestGet_RecoversAfterTransientErrors(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1!1:1": {{"email"}},
		"Sheet1!A:A": {{"email"}, {"x@y.z"}},
	})
	values.getErrs = []error{
		&google.APIError{StatusCode: http.StatusServiceUnavailable},
		&net.OpError{Op: "read", Err: errors.New("connection reset by peer")},
	}
	rec := &recordingSleep{}
	c := testClient(values, rec)

	got, err := c.GetBlacklist(context.Background(), "bl", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x@y.z"}, got)
	assert.Len(t, rec.delays, 2)
}

func TestGet_NonRetryableStatusPropagatesImmediately(t *testing.T) {
	values := mocks.NewMockSheetsClient(t)
	values.On("Get", mock.Anything, "bl", "Sheet1!1:1").
		Return(nil, &google.APIError{StatusCode: http.StatusForbidden, Message: "no access"}).
		Once()

	rec := &recordingSleep{}
	c := testClient(values, rec)

	_, err := c.GetBlacklist(context.Background(), "bl", "Sheet1")
	var uerr *UpstreamError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusForbidden, uerr.HTTPStatus())
	assert.Empty(t, rec.delays)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&google.APIError{StatusCode: 429}))
	assert.True(t, IsRetryable(&google.APIError{StatusCode: 500}))
	assert.True(t, IsRetryable(&google.APIError{StatusCode: 503}))
	assert.False(t, IsRetryable(&google.APIError{StatusCode: 502}))
	assert.False(t, IsRetryable(&google.APIError{StatusCode: 400}))
	assert.True(t, IsRetryable(errors.New("read tcp: connection reset by peer")))
	assert.False(t, IsRetryable(errors.New("invalid range")))
}

func TestUpdateContacts_DuplicateEmailsUpdateAllRows(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1": {
			contactHeader,
			{"A One", "dup@example.com", "", "", "", ""},
			{"B Two", "other@example.com", "", "", "", ""},
			{"A Again", " DUP@example.com", "", "", "", ""},
		},
	})
	c := testClient(values, &recordingSleep{})

	sent := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)
	err := c.UpdateContacts(context.Background(), "contacts", "Sheet1", model.ColumnMappings{}, []model.ContactUpdate{
		{Email: "dup@example.com", Updates: model.ContactFieldUpdates{ScheduledFor: &sent, Status: model.ContactStatusSent}},
		{Email: "missing@example.com", Updates: model.ContactFieldUpdates{Status: model.ContactStatusFailed}},
	})
	require.NoError(t, err)

	require.Len(t, values.batches, 1, "one batch call")
	assert.Equal(t, []google.CellValue{
		{Range: "Sheet1!E2", Value: "2026-05-04T09:30:00.000Z"},
		{Range: "Sheet1!F2", Value: "sent"},
		{Range: "Sheet1!E4", Value: "2026-05-04T09:30:00.000Z"},
		{Range: "Sheet1!F4", Value: "sent"},
	}, values.batches[0])
}

func TestUpdateContacts_ScheduleOffsetOption(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1": {contactHeader, {"A", "a@x.io", "", "", "", ""}},
	})
	c := testClient(values, &recordingSleep{}, WithScheduleOffset(0))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	require.NoError(t, c.UpdateContacts(context.Background(), "s", "Sheet1", model.ColumnMappings{}, []model.ContactUpdate{
		{Email: "a@x.io", Updates: model.ContactFieldUpdates{ScheduledFor: &at}},
	}))
	require.Len(t, values.batches, 1)
	assert.Equal(t, "2026-01-02T02:04:05.000Z", values.batches[0][0].Value)
}

func TestUpdateContacts_NoMatchesSkipsWrite(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1": {contactHeader, {"A", "a@x.io", "", "", "", ""}},
	})
	c := testClient(values, &recordingSleep{})

	require.NoError(t, c.UpdateContacts(context.Background(), "s", "Sheet1", model.ColumnMappings{}, []model.ContactUpdate{
		{Email: "nobody@x.io", Updates: model.ContactFieldUpdates{Status: model.ContactStatusSent}},
	}))
	assert.Empty(t, values.batches)
}

func TestUpdateContacts_MissingStatusColumn(t *testing.T) {
	values := newFakeValues(map[string][][]string{
		"Sheet1": {{"name", "email"}, {"A", "a@x.io"}},
	})
	c := testClient(values, &recordingSleep{})

	err := c.UpdateContacts(context.Background(), "s", "Sheet1", model.ColumnMappings{}, []model.ContactUpdate{
		{Email: "a@x.io", Updates: model.ContactFieldUpdates{Status: model.ContactStatusSent}},
	})
	var serr *StructureError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, []string{"status"}, serr.Missing)
}

func TestUpdateContacts_Empty(t *testing.T) {
	values := newFakeValues(nil)
	c := testClient(values, &recordingSleep{})
	require.NoError(t, c.UpdateContacts(context.Background(), "s", "Sheet1", model.ColumnMappings{}, nil))
	assert.Empty(t, values.gets)
}

func TestRateLimit_ContextCancelled(t *testing.T) {
	values := newFakeValues(nil)
	c := New(values, WithRateLimit(0.001, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetBlacklist(ctx, "bl", "Sheet1")
	require.Error(t, err)
	assert.Empty(t, values.gets)
}
