package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/sheets"
	"github.com/sells-group/leadflow/internal/workspace"
	"github.com/sells-group/leadflow/pkg/anthropic"
	anthropicmocks "github.com/sells-group/leadflow/pkg/anthropic/mocks"
	googlemocks "github.com/sells-group/leadflow/pkg/google/mocks"
)

func TestInitStore_UnsupportedDriver(t *testing.T) {
	c := useConfig(t)
	c.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_SQLite(t *testing.T) {
	useConfig(t)

	st, err := openStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.Ping(context.Background()))
}

func TestInitPipeline_ValidatesMode(t *testing.T) {
	c := useConfig(t)
	c.Auth.JWTSecret = ""

	_, err := initPipeline(context.Background(), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func verifierServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{
			"disposable": false,
			"spam":       strings.Contains(r.URL.Path, "spam.io"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProcess_EndToEndWithWorkbook(t *testing.T) {
	c := useConfig(t)
	c.Anthropic.Key = "server-key"
	c.Verifier.BaseURL = verifierServer(t).URL

	path := writeWorkbook(t, map[string][][]string{
		"Blacklist": {{"email"}, {"Bob@Blocked.io"}},
		"Contacts": {
			{"name", "email", "company", "position", "scheduled_for", "status"},
			{"Jana Novak", "jana@acme.cz", "Acme", "CTO", "", ""},
			{"Bob Stone", "bob@blocked.io", "Blocked", "CEO", "", ""},
			{"Eve Spam", "eve@spam.io", "Spam Inc", "CFO", "", ""},
		},
	})
	wb, err := sheets.OpenWorkbook(path)
	require.NoError(t, err)

	llm := anthropicmocks.NewMockClient(t)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "[SUBJECT]: Hello Jana\n[BODY]: Quick intro.\n[/BODY]"}},
	}, nil)
	gmail := googlemocks.NewMockGmailSender(t)
	gmail.On("SendRaw", mock.Anything, "me", mock.Anything).Return("msg-1", nil).Once()

	ctx := context.Background()
	env, err := initPipeline(ctx, "process",
		workspace.WithValues(wb),
		workspace.WithGmail(gmail),
		workspace.WithLLMFactory(func(string) anthropic.Client { return llm }),
	)
	require.NoError(t, err)
	defer env.Close()

	require.NoError(t, importSettings(ctx, env.Store, &model.Settings{
		UserID:             "user-1",
		BlacklistSheetID:   "local",
		BlacklistSheetName: "Blacklist",
		ContactsSheetID:    "local",
		ContactsSheetName:  "Contacts",
		ColumnMappings:     model.DefaultColumnMappings(),
		ImpersonatedEmail:  "sales@example.com",
	}))

	res, err := env.Pipeline.Run(ctx, "user-1", model.RunOptions{UpdateScheduling: true})
	require.NoError(t, err)
	assert.Equal(t, model.RunStats{Total: 3, Processed: 2, Success: 1, Failure: 1}, res.Stats)

	ds, err := env.Store.GetDashboardStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.EmailsSent)
	assert.Equal(t, 1, ds.BlacklistCount)
	assert.Equal(t, 2, ds.ContactsCount)

	s, err := env.Store.GetSettings(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, s.LastExecutionAt)

	failures, err := env.Store.ListProcessingLogs(ctx, model.LogFilter{UserID: "user-1", Stage: model.StageVerification})
	require.NoError(t, err)
	require.NotEmpty(t, failures)

	rows, err := wb.Get(ctx, "local", "Contacts!A1:F4")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "sent", rows[1][5])
	assert.Equal(t, "failed", rows[3][5])
	assert.NotEmpty(t, rows[1][4])
}

func TestProcess_TestModeDoesNotSend(t *testing.T) {
	c := useConfig(t)
	c.Anthropic.Key = "server-key"
	c.Verifier.BaseURL = verifierServer(t).URL

	path := writeWorkbook(t, map[string][][]string{
		"Blacklist": {{"email"}, {"someone@else.io"}},
		"Sheet1": {
			{"name", "email", "company", "position", "scheduled_for", "status"},
			{"Jana Novak", "jana@acme.cz", "Acme", "CTO"},
		},
	})
	wb, err := sheets.OpenWorkbook(path)
	require.NoError(t, err)

	llm := anthropicmocks.NewMockClient(t)
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "[SUBJECT]: Hello\n[BODY]: Body text\n[/BODY]"}},
	}, nil)

	ctx := context.Background()
	env, err := initPipeline(ctx, "process",
		workspace.WithValues(wb),
		workspace.WithLLMFactory(func(string) anthropic.Client { return llm }),
	)
	require.NoError(t, err)
	defer env.Close()

	require.NoError(t, importSettings(ctx, env.Store, &model.Settings{
		UserID:             "user-2",
		BlacklistSheetID:   "local",
		BlacklistSheetName: "Blacklist",
		ContactsSheetID:    "local",
		ColumnMappings:     model.DefaultColumnMappings(),
	}))

	res, err := env.Pipeline.Run(ctx, "user-2", model.RunOptions{TestMode: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Success)
	require.Len(t, res.Previews, 1)
	assert.Equal(t, "Hello", res.Previews[0].Subject)

	var out strings.Builder
	require.NoError(t, json.NewEncoder(&out).Encode(processResponse(res)))
	assert.Contains(t, out.String(), `"previews"`)
}

func TestProcessOptions(t *testing.T) {
	t.Cleanup(func() { processTestMode = false })
	cmd := &cobra.Command{Use: "process"}
	cmd.Flags().IntVar(&processStartRow, "start-row", 0, "")
	cmd.Flags().IntVar(&processEndRow, "end-row", 0, "")
	cmd.Flags().IntVar(&processDelayMs, "delay", 0, "")
	cmd.Flags().BoolVar(&processTestMode, "test", false, "")
	cmd.Flags().BoolVar(&processUpdateScheduling, "update-scheduling", false, "")

	require.NoError(t, cmd.ParseFlags([]string{"--start-row", "3", "--delay", "0", "--test"}))
	opts := processOptions(cmd)

	require.NotNil(t, opts.StartRow)
	assert.Equal(t, 3, *opts.StartRow)
	assert.Nil(t, opts.EndRow)
	require.NotNil(t, opts.DelayBetweenEmails)
	assert.Equal(t, 0, *opts.DelayBetweenEmails)
	assert.True(t, opts.TestMode)
	assert.False(t, opts.UpdateScheduling)
}
