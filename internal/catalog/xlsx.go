package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"DecorStore/internal/apperr"
	"DecorStore/internal/auth"
	"DecorStore/internal/filedb"
)

var exportHeader = []string{"id", "name", "description", "category", "price", "stock", "images", "created_at", "updated_at"}

// ImportResult counts what an import did. Errors holds one line per
// skipped row.
type ImportResult struct {
	Created int      `json:"created_count"`
	Updated int      `json:"updated_count"`
	Skipped int      `json:"skipped_count"`
	Errors  []string `json:"errors,omitempty"`
}

// Export writes every product as a workbook with one header row.
func (s *Service) Export(ctx context.Context, actor auth.Identity, w io.Writer) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	all, err := s.products.List(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(all))
	for _, p := range all {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.Description,
			p.Category,
			filedb.FormatCents(p.PriceCents),
			filedb.FormatInt(p.Stock),
			filedb.JoinList(p.Images),
			filedb.FormatTime(p.CreatedAt),
			filedb.FormatTime(p.UpdatedAt),
		})
	}
	return filedb.XLSX{Sheet: "Products"}.Encode(w, exportHeader, rows)
}

// Import creates or updates products from a workbook laid out like
// Export. Rows whose id matches an existing product update it; others are
// created. Rows that fail validation are skipped. The whole import is one
// write.
func (s *Service) Import(ctx context.Context, actor auth.Identity, data []byte) (ImportResult, error) {
	if !actor.IsAdmin() {
		return ImportResult{}, errAdminOnly
	}

	header, rows, err := filedb.XLSX{}.Decode(data)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: not a readable xlsx file: %v", apperr.ErrValidation, err)
	}
	col := columnIndex(header)
	if _, ok := col["name"]; !ok {
		return ImportResult{}, fmt.Errorf("%w: header row must have a name column", apperr.ErrValidation)
	}
	if _, ok := col["price"]; !ok {
		return ImportResult{}, fmt.Errorf("%w: header row must have a price column", apperr.ErrValidation)
	}

	var res ImportResult
	err = s.products.Mutate(ctx, func(tx *filedb.CollectionTx[Product]) error {
		res = ImportResult{}
		now := s.now()

		for i, row := range rows {
			get := func(name string) string {
				j, ok := col[name]
				if !ok || j >= len(row) {
					return ""
				}
				return strings.TrimSpace(row[j])
			}
			skip := func(err error) {
				res.Skipped++
				res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", i+2, err))
			}

			if blankRow(row) {
				continue
			}

			price, err := filedb.ParseCents(get("price"))
			if err != nil {
				skip(err)
				continue
			}
			stock, err := filedb.ParseInt(get("stock"))
			if err != nil {
				skip(err)
				continue
			}

			id := get("id")
			existing, err := tx.Get(id)
			found := id != "" && err == nil

			p := existing
			if !found {
				p = Product{ID: id, CreatedBy: actor.UserID, CreatedAt: now, Images: []string{}}
			}
			p.Name = get("name")
			p.Description = get("description")
			p.Category = firstNonEmpty(get("category"), defaultCategory)
			p.PriceCents = price
			p.Stock = stock
			if imgs := get("images"); imgs != "" {
				p.Images = filedb.SplitList(imgs)
			}
			p.UpdatedAt = now

			if err := validate(p); err != nil {
				skip(err)
				continue
			}

			if found {
				if _, err := tx.Put(id, p); err != nil {
					return err
				}
				res.Updated++
				continue
			}
			if _, err := tx.Insert(p); err != nil {
				skip(err)
				continue
			}
			res.Created++
		}
		return nil
	})
	return res, err
}

func columnIndex(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "title" {
			key = "name"
		}
		if _, dup := out[key]; !dup {
			out[key] = i
		}
	}
	return out
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
