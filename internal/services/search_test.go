package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tagfiler/backend/internal/models"
)

func TestListFilesKeywordAndSizeFilters(t *testing.T) {
	db := setupTestDB(t)
	files := NewFileService(db)
	search := NewSearchService(db)
	ctx := context.Background()

	seed := []struct {
		path string
		size int64
	}{
		{"/docs/report.pdf", 5000},
		{"/docs/Report-final.PDF", 9000},
		{"/music/track.mp3", 100},
	}
	for _, s := range seed {
		if _, err := files.CreateIfAbsent(ctx, s.path, models.FileTypeFile, s.size); err != nil {
			t.Fatalf("failed seeding %q: %v", s.path, err)
		}
	}

	page, err := search.ListFiles(ctx, FileQuery{Keyword: "report"})
	if err != nil {
		t.Fatalf("failed listing files: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected case-insensitive keyword to match 2 files, got %d", page.Total)
	}

	min := int64(4000)
	max := int64(6000)
	page, err = search.ListFiles(ctx, FileQuery{MinSize: &min, MaxSize: &max})
	if err != nil {
		t.Fatalf("failed listing files: %v", err)
	}
	if page.Total != 1 || page.Items[0].CurrentPath != "/docs/report.pdf" {
		t.Fatalf("expected size range to match one file, got %+v", page.Items)
	}
}

func TestListFilesTagAndDateFilters(t *testing.T) {
	db := setupTestDB(t)
	files := NewFileService(db)
	tags := NewTagService(db)
	assocs := NewAssociationService(db, files)
	search := NewSearchService(db)
	ctx := context.Background()

	tagged := createTestFile(t, files, "/a.txt")
	createTestFile(t, files, "/b.txt")
	tag := createTestTag(t, tags, "work")
	if err := assocs.Attach(ctx, tagged.ID, tag.ID, 1.0); err != nil {
		t.Fatalf("failed attaching tag: %v", err)
	}

	page, err := search.ListFiles(ctx, FileQuery{TagIDs: []uint{tag.ID}})
	if err != nil {
		t.Fatalf("failed listing files: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != tagged.ID {
		t.Fatalf("expected tag filter to match one file, got %+v", page.Items)
	}
	if len(page.Items[0].Tags) != 1 {
		t.Fatalf("expected tags preloaded on result, got %+v", page.Items[0].Tags)
	}

	future := time.Now().UTC().Add(time.Hour)
	page, err = search.ListFiles(ctx, FileQuery{From: &future})
	if err != nil {
		t.Fatalf("failed listing files: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected future cutoff to match nothing, got %d", page.Total)
	}

	past := time.Now().UTC().Add(-time.Hour)
	page, err = search.ListFiles(ctx, FileQuery{From: &past})
	if err != nil {
		t.Fatalf("failed listing files: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected past cutoff to match everything, got %d", page.Total)
	}
}

func TestListFilesSortAndPaginationPartition(t *testing.T) {
	db := setupTestDB(t)
	files := NewFileService(db)
	search := NewSearchService(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("/docs/file-%d.txt", i)
		// Equal sizes force the id tie-break to carry the ordering.
		if _, err := files.CreateIfAbsent(ctx, path, models.FileTypeFile, 100); err != nil {
			t.Fatalf("failed seeding %q: %v", path, err)
		}
	}

	seen := map[uint]bool{}
	for pageNum := 1; pageNum <= 3; pageNum++ {
		page, err := search.ListFiles(ctx, FileQuery{SortBy: SortBySize, Page: pageNum, PageSize: 2})
		if err != nil {
			t.Fatalf("failed listing page %d: %v", pageNum, err)
		}
		if page.Total != 5 {
			t.Fatalf("expected total 5, got %d", page.Total)
		}
		for _, item := range page.Items {
			if seen[item.ID] {
				t.Fatalf("record %d returned on two pages", item.ID)
			}
			seen[item.ID] = true
		}
		wantMore := pageNum < 3
		if page.HasMore != wantMore {
			t.Fatalf("page %d: expected hasMore=%v, got %v", pageNum, wantMore, page.HasMore)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected pages to partition all 5 records, got %d", len(seen))
	}

	desc, err := search.ListFiles(ctx, FileQuery{SortBy: SortByName, Desc: true, PageSize: 5})
	if err != nil {
		t.Fatalf("failed listing descending: %v", err)
	}
	if desc.Items[0].CurrentPath != "/docs/file-4.txt" {
		t.Fatalf("expected descending name order, got %q first", desc.Items[0].CurrentPath)
	}
}

func TestFilesByTag(t *testing.T) {
	db := setupTestDB(t)
	files := NewFileService(db)
	tags := NewTagService(db)
	assocs := NewAssociationService(db, files)
	search := NewSearchService(db)
	ctx := context.Background()

	tag := createTestTag(t, tags, "work")
	second := createTestFile(t, files, "/b.txt")
	first := createTestFile(t, files, "/a.txt")
	retired := createTestFile(t, files, "/z.txt")
	for _, record := range []*models.FileRecord{second, first, retired} {
		if err := assocs.Attach(ctx, record.ID, tag.ID, 1.0); err != nil {
			t.Fatalf("failed attaching tag: %v", err)
		}
	}
	if err := files.SoftDelete(ctx, "/z.txt"); err != nil {
		t.Fatalf("failed deleting record: %v", err)
	}

	page, err := search.FilesByTag(ctx, tag.ID, 1, 10)
	if err != nil {
		t.Fatalf("failed listing files by tag: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected retired record excluded, got total %d", page.Total)
	}
	if page.Items[0].ID != first.ID || page.Items[1].ID != second.ID {
		t.Fatalf("expected path order [a, b], got %+v", page.Items)
	}

	if _, err := search.FilesByTag(ctx, 9999, 1, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown tag, got %v", err)
	}
}
