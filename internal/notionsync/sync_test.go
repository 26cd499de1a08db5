package notionsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/logger"
)

type fakeSource struct {
	summaries   []domain.DeviceSummary
	annotations []domain.DeviceAnnotation
}

func (f *fakeSource) Summaries(ctx context.Context, filter domain.SummaryFilter) ([]domain.DeviceSummary, error) {
	return f.summaries, nil
}

func (f *fakeSource) ListAnnotations(ctx context.Context, flag domain.AnnotationFlag) ([]domain.DeviceAnnotation, error) {
	return f.annotations, nil
}

type fakeNotion struct {
	pages      []notionapi.Page
	created    []notionapi.Properties
	updated    map[string]notionapi.Properties
	archived   []string
	failCreate bool
	queries    int
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, props notionapi.Properties) (*notionapi.Page, error) {
	if f.failCreate {
		return nil, errors.New("rate limited")
	}
	f.created = append(f.created, props)
	return &notionapi.Page{ID: notionapi.ObjectID(fmt.Sprintf("new-%d", len(f.created)))}, nil
}

func (f *fakeNotion) UpdatePage(ctx context.Context, pageID string, props notionapi.Properties) (*notionapi.Page, error) {
	f.updated[pageID] = props
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

// QueryDatabase serves one page per call to exercise pagination.
func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	i := f.queries
	f.queries++
	if i >= len(f.pages) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return &notionapi.DatabaseQueryResponse{
		Results:    []notionapi.Page{f.pages[i]},
		HasMore:    i+1 < len(f.pages),
		NextCursor: notionapi.Cursor(fmt.Sprintf("c%d", i+1)),
	}, nil
}

func (f *fakeNotion) ArchivePage(ctx context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return nil
}

func page(id, imei string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			PropIMEI: &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: imei}}},
		},
	}
}

func summary(imei string) domain.DeviceSummary {
	s := domain.DeviceSummary{
		DeviceID:       imei,
		ActivationDate: civil.Date{Year: 2025, Month: 1, Day: 1},
		Store:          "Main St",
		SaleType:       "Upgrade",
		TotalEarned:    90,
		NetAmount:      90,
		IsActive:       true,
	}
	for i := range s.Months {
		s.Months[i] = domain.MonthStatus{Month: i + 1, Status: domain.StatusPending}
	}
	return s
}

func syncCtx() context.Context {
	return logger.WithContext(context.Background(), logger.NewWithWriter(&bytes.Buffer{}))
}

func TestSyncDevices(t *testing.T) {
	src := &fakeSource{
		summaries:   []domain.DeviceSummary{summary("111"), summary("222")},
		annotations: []domain.DeviceAnnotation{{DeviceID: "111", Notes: "call back", Suspended: true}},
	}
	notion := &fakeNotion{
		pages:   []notionapi.Page{page("p1", "111"), page("p2", "999"), page("p3", ""), page("p4", "111")},
		updated: map[string]notionapi.Properties{},
	}

	res, err := SyncDevices(syncCtx(), src, notion, "db", false)
	require.NoError(t, err)

	assert.Equal(t, SyncResult{Created: 1, Updated: 1, Archived: 3}, res)
	assert.Equal(t, 4, notion.queries, "follows the cursor until HasMore is false")
	assert.ElementsMatch(t, []string{"p2", "p3", "p4"}, notion.archived)

	require.Contains(t, notion.updated, "p1")
	props := notion.updated["p1"]
	assert.Equal(t, notionapi.CheckboxProperty{Checkbox: true}, props[PropSuspended])
	require.Len(t, notion.created, 1)
	assert.Equal(t, "222", notion.created[0][PropIMEI].(notionapi.TitleProperty).Title[0].Text.Content)
}

func TestSyncDevices_DryRun(t *testing.T) {
	src := &fakeSource{summaries: []domain.DeviceSummary{summary("111"), summary("222")}}
	notion := &fakeNotion{pages: []notionapi.Page{page("p1", "111"), page("p2", "999")}, updated: map[string]notionapi.Properties{}}

	res, err := SyncDevices(syncCtx(), src, notion, "db", true)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Created: 1, Updated: 1, Archived: 1}, res)
	assert.Empty(t, notion.created)
	assert.Empty(t, notion.updated)
	assert.Empty(t, notion.archived)
}

func TestSyncDevices_CountsFailures(t *testing.T) {
	src := &fakeSource{summaries: []domain.DeviceSummary{summary("111")}}
	notion := &fakeNotion{updated: map[string]notionapi.Properties{}, failCreate: true}

	res, err := SyncDevices(syncCtx(), src, notion, "db", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Created)
}

func TestSummaryToNotionProperties(t *testing.T) {
	s := summary("356789012345678")
	s.Store = "Main St, Suite 4"
	s.Months[0].Status = domain.StatusPaid
	s.Months[1].Status = domain.StatusMissing
	s.AlertCount = 1

	props := SummaryToNotionProperties(s, domain.DeviceAnnotation{BYODSwap: true})

	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "paid"}}, props[MonthProperty(1)])
	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "missing"}}, props[MonthProperty(2)])
	assert.Equal(t, notionapi.SelectProperty{Select: notionapi.Option{Name: "Main St  Suite 4"}}, props[PropStore])
	assert.Equal(t, notionapi.NumberProperty{Number: 1}, props[PropAlerts])
	assert.Equal(t, notionapi.CheckboxProperty{Checkbox: true}, props[PropBYODSwap])
	assert.NotContains(t, props, PropRep)
	assert.NotContains(t, props, PropCustomer)

	date := props[PropActivationDate].(notionapi.DateProperty)
	assert.Equal(t, "2025-01-01", time.Time(*date.Date.Start).Format("2006-01-02"))
}

func TestExtractIMEI(t *testing.T) {
	assert.Equal(t, "111", extractIMEI(page("p", "111")))
	assert.Equal(t, "", extractIMEI(notionapi.Page{}))

	local := notionapi.Page{Properties: SummaryToNotionProperties(summary("222"), domain.DeviceAnnotation{})}
	assert.Equal(t, "222", extractIMEI(local))
}
