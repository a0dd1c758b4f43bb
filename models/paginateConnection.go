package models

import (
	"fmt"

	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

type Cursor interface {
	GetCursor() string
}

type Edge[N Cursor] struct {
	Node   *N
	Cursor string
}

type CompositeCursor interface {
	Cursor
	Identifier
}

// FetchPagePureCursor pages on a single cursor column. Queries limit+1 rows;
// the extra row only signals hasNextPage and is dropped from the edges.
func FetchPagePureCursor[T Cursor](dbCtx *gorm.DB,
	limit int,
	after *string,
	cursorColumn string,
	cmpOperator string,
) ([]Edge[T], *PageInfo, error) {

	if cmpOperator == ">" {
		dbCtx.Order(cursorColumn)
	} else if cmpOperator == "<" {
		dbCtx.Order(cursorColumn + " DESC")
	}

	decodedCursor, err := DecodeCursor(after)
	if err != nil {
		return nil, nil, err
	}
	if decodedCursor != "" {
		dbCtx.Where(cursorColumn+" "+cmpOperator+" ?", decodedCursor)
	}

	nodes := make([]*T, 0)
	dbCtx.Limit(limit + 1)
	if err = dbCtx.Find(&nodes).Error; err != nil {
		return nil, nil, err
	}

	return buildConnection(nodes, limit, func(node *T) string {
		return EncodeCursor((*node).GetCursor())
	})
}

// FetchPageCompositeCursor pages on (cursorColumn, id) so rows sharing a
// timestamp still page deterministically.
func FetchPageCompositeCursor[T CompositeCursor](dbCtx *gorm.DB,
	limit int,
	after *string,
	cursorColumn string,
	cmpOperator string,
) ([]Edge[T], *PageInfo, error) {

	if cmpOperator == ">" {
		dbCtx.Order(cursorColumn + ", id")
	} else if cmpOperator == "<" {
		dbCtx.Order(cursorColumn + " DESC, id DESC")
	}

	decodedCursor, cursorId := DecodeCompositeCursor(after)
	if decodedCursor != "" {
		dbCtx.Where(
			// [1] = column, [2] = operator
			fmt.Sprintf("%[1]s %[2]s ? OR (%[1]s = ? AND id %[2]s ?)", cursorColumn, cmpOperator),
			decodedCursor, decodedCursor, cursorId)
	}

	nodes := make([]*T, 0)
	dbCtx.Limit(limit + 1)
	if err := dbCtx.Find(&nodes).Error; err != nil {
		return nil, nil, err
	}

	return buildConnection(nodes, limit, func(node *T) string {
		return EncodeCompositeCursor((*node).GetCursor(), (*node).GetId())
	})
}

func buildConnection[T Cursor](nodes []*T, limit int, encode func(*T) string) ([]Edge[T], *PageInfo, error) {
	hasNextPage := len(nodes) > limit
	if hasNextPage {
		nodes = nodes[:limit]
	}

	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		edges = append(edges, Edge[T]{Node: node, Cursor: encode(node)})
	}

	pageInfo := PageInfo{HasNextPage: utils.NewFalse()}
	if len(edges) > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[len(edges)-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}
	return edges, &pageInfo, nil
}
