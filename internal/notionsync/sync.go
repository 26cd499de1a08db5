package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/commission-tracker/internal/domain"
	"github.com/dvloznov/commission-tracker/internal/logger"
)

// pageSize is the maximum Notion allows per database query.
const pageSize = 100

// DeviceSource supplies the rows to mirror. commission.Service satisfies it.
type DeviceSource interface {
	Summaries(ctx context.Context, filter domain.SummaryFilter) ([]domain.DeviceSummary, error)
	ListAnnotations(ctx context.Context, flag domain.AnnotationFlag) ([]domain.DeviceAnnotation, error)
}

// SyncResult counts what a sync did or, in dry-run mode, would do.
type SyncResult struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncDevices mirrors every active device summary into the database:
// 1. Queries all existing Notion pages
// 2. Archives pages whose IMEI is no longer an active device
// 3. Updates pages of known devices and creates the rest
//
// Failures on individual pages are logged and counted, not returned.
func SyncDevices(ctx context.Context, src DeviceSource, notionClient NotionService, notionDBID string, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	var result SyncResult

	log.Info().Bool("dry_run", dryRun).Msg("Starting device sync to Notion")

	summaries, err := src.Summaries(ctx, domain.SummaryFilter{})
	if err != nil {
		return result, fmt.Errorf("SyncDevices: loading summaries: %w", err)
	}
	annotations, err := src.ListAnnotations(ctx, "")
	if err != nil {
		return result, fmt.Errorf("SyncDevices: loading annotations: %w", err)
	}
	byDevice := make(map[string]domain.DeviceAnnotation, len(annotations))
	for _, a := range annotations {
		byDevice[a.DeviceID] = a
	}

	log.Info().Int("device_count", len(summaries)).Msg("Loaded device summaries")

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return result, fmt.Errorf("SyncDevices: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	valid := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		valid[s.DeviceID] = true
	}

	// Archive stale pages, remember the first page of every live device.
	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		imei := extractIMEI(page)
		if imei != "" && valid[imei] {
			if _, dup := existing[imei]; !dup {
				existing[imei] = string(page.ID)
				continue
			}
		}

		plog := log.With().Str("imei", imei).Str("page_id", string(page.ID)).Logger()
		if dryRun {
			plog.Info().Msg("[DRY RUN] Would archive stale Notion page")
			result.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			plog.Warn().Err(err).Msg("Failed to archive stale Notion page")
			result.Failed++
			continue
		}
		plog.Info().Msg("Archived stale Notion page")
		result.Archived++
	}

	for _, s := range summaries {
		pageID, found := existing[s.DeviceID]
		dlog := log.With().Str("imei", s.DeviceID).Logger()

		if dryRun {
			if found {
				dlog.Info().Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				result.Updated++
			} else {
				dlog.Info().Msg("[DRY RUN] Would create Notion page")
				result.Created++
			}
			continue
		}

		props := SummaryToNotionProperties(s, byDevice[s.DeviceID])
		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				dlog.Warn().Err(err).Str("page_id", pageID).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			result.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			dlog.Warn().Err(err).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		dlog.Debug().Str("page_id", string(page.ID)).Msg("Created Notion page")
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Int("total", len(summaries)).
		Msg("Device sync completed")

	return result, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: pageSize,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
