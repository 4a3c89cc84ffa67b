package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tagfiler/backend/internal/database"
	"github.com/tagfiler/backend/internal/models"
	"github.com/tagfiler/backend/pkg/utils"
)

type SortKey string

const (
	SortByName     SortKey = "name"
	SortBySize     SortKey = "size"
	SortByModified SortKey = "modified"
	SortByCreated  SortKey = "created"
)

// FileQuery carries every filter the listing surface supports. Zero values
// mean "no constraint".
type FileQuery struct {
	Keyword  string
	TagIDs   []uint
	MinSize  *int64
	MaxSize  *int64
	From     *time.Time
	To       *time.Time
	SortBy   SortKey
	Desc     bool
	Page     int
	PageSize int
}

// Page is the paginated result envelope every listing returns.
type Page struct {
	Items    []models.FileRecord `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
	HasMore  bool                `json:"hasMore"`
}

// SearchService is the read side: paginated, deterministic listings of live
// records joined with their tags.
type SearchService struct {
	db *database.Database
}

func NewSearchService(db *database.Database) *SearchService {
	return &SearchService{db: db}
}

// ListFiles applies the query's filters and returns one stable page. Ties on
// the sort key always break by id ascending so consecutive pages partition
// the result set exactly.
func (s *SearchService) ListFiles(ctx context.Context, q FileQuery) (*Page, error) {
	params := utils.NormalizePagination(q.Page, q.PageSize)

	query := s.db.WithContext(ctx).Model(&models.FileRecord{})

	if q.Keyword != "" {
		pattern := "%" + escapeLike(q.Keyword) + "%"
		if s.db.Caps.FuzzySearch {
			query = query.Where("current_path ILIKE ? ESCAPE '\\'", pattern)
		} else {
			query = query.Where("LOWER(current_path) LIKE LOWER(?) ESCAPE '\\'", pattern)
		}
	}

	if len(q.TagIDs) > 0 {
		query = query.Where(
			"id IN (?)",
			s.db.WithContext(ctx).Model(&models.FileTag{}).
				Select("file_id").Where("tag_id IN ?", q.TagIDs),
		)
	}

	if q.MinSize != nil {
		query = query.Where("size >= ?", *q.MinSize)
	}
	if q.MaxSize != nil {
		query = query.Where("size <= ?", *q.MaxSize)
	}
	if q.From != nil {
		query = query.Where("updated_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("updated_at <= ?", *q.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}

	items := []models.FileRecord{}
	err := query.
		Preload("Tags", "tags.deleted_at IS NULL").
		Order(orderClause(q.SortBy, q.Desc)).
		Offset(params.Offset).
		Limit(params.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	return &Page{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		HasMore:  int64(params.Offset+len(items)) < total,
	}, nil
}

// FilesByTag pages through the live records carrying one tag, in path order.
func (s *SearchService) FilesByTag(ctx context.Context, tagID uint, page, pageSize int) (*Page, error) {
	if err := ensureLive(s.db.WithContext(ctx), &models.Tag{}, tagID); err != nil {
		return nil, err
	}

	params := utils.NormalizePagination(page, pageSize)

	query := s.db.WithContext(ctx).Model(&models.FileRecord{}).Where(
		"id IN (?)",
		s.db.WithContext(ctx).Model(&models.FileTag{}).
			Select("file_id").Where("tag_id = ?", tagID),
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting files for tag: %w", err)
	}

	items := []models.FileRecord{}
	err := query.
		Preload("Tags", "tags.deleted_at IS NULL").
		Order("current_path ASC, id ASC").
		Offset(params.Offset).
		Limit(params.PageSize).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("listing files for tag: %w", err)
	}

	return &Page{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		HasMore:  int64(params.Offset+len(items)) < total,
	}, nil
}

func orderClause(key SortKey, desc bool) string {
	column := "current_path"
	switch key {
	case SortBySize:
		column = "size"
	case SortByModified:
		column = "updated_at"
	case SortByCreated:
		column = "created_at"
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s, id ASC", column, direction)
}
