package formulari

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultTable = "formulari"

// Repository reads formulari from Postgres. Rows are written by the
// ingestion service; this side never migrates or inserts.
type Repository struct {
	db    *gorm.DB
	table string
}

var _ store.Store[Formulario] = (*Repository)(nil)

func NewRepository(db *gorm.DB, table string) *Repository {
	if table == "" {
		table = defaultTable
	}
	return &Repository{db: db, table: table}
}

type formularioRow struct {
	ID                      int64          `gorm:"primaryKey;column:id"`
	UID                     string         `gorm:"column:uid;uniqueIndex"`
	CreatedAt               time.Time      `gorm:"column:created_at"`
	NumeroFir               *string        `gorm:"column:numeroFir"`
	Produttore              *string        `gorm:"column:produttore"`
	UnitaLocaleProduttore   *string        `gorm:"column:unita_locale_produttore"`
	Trasportatore           *string        `gorm:"column:trasportatore"`
	Destinatario            *string        `gorm:"column:destinatario"`
	UnitaLocaleDestinatario *string        `gorm:"column:unita_locale_destinatario"`
	Intermediario           *string        `gorm:"column:intermediario"`
	IDAppuntamento          *string        `gorm:"column:id_appuntamento"`
	DataEmissione           *time.Time     `gorm:"column:data_emissione"`
	DataMovimento           *time.Time     `gorm:"column:data_movimento"`
	DatiFormulario          datatypes.JSON `gorm:"column:dati_formulario"`
	DatiAppuntamento        datatypes.JSON `gorm:"column:dati_appuntamento"`
	DatiInvioPEC            datatypes.JSON `gorm:"column:dati_invio_pec"`
	RisultatiInvioPEC       datatypes.JSON `gorm:"column:risultati_invio_pec"`
	FilePaths               datatypes.JSON `gorm:"column:file_paths"`
}

func (formularioRow) TableName() string { return defaultTable }

func (r *Repository) scoped(ctx context.Context, where []store.Cond) *gorm.DB {
	tx := r.db.WithContext(ctx).Table(r.table)
	if exprs := buildConds(where); len(exprs) > 0 {
		tx = tx.Clauses(clause.Where{Exprs: exprs})
	}
	return tx
}

func (r *Repository) Find(ctx context.Context, q store.Query) ([]Formulario, error) {
	var rows []formularioRow
	if err := r.findQuery(ctx, q).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find formulari: %w", err)
	}
	out := make([]Formulario, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *Repository) findQuery(ctx context.Context, q store.Query) *gorm.DB {
	tx := r.scoped(ctx, q.Where)
	for _, o := range q.Order {
		// Sorting is only exposed on top-level columns.
		col := clause.Column{Name: o.Field.Column}
		if isPartyColumn(o.Field.Column) {
			col = clause.Column{Name: partyColumnSQL(o.Field.Column), Raw: true}
		}
		tx = tx.Order(clause.OrderByColumn{Column: col, Desc: o.Desc})
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

func (r *Repository) Count(ctx context.Context, where []store.Cond) (int64, error) {
	var total int64
	if err := r.scoped(ctx, where).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count formulari: %w", err)
	}
	return total, nil
}

type groupRow struct {
	Entity string `gorm:"column:entity"`
	Total  int64  `gorm:"column:total"`
}

func (r *Repository) GroupCount(ctx context.Context, f store.Field, where []store.Cond, limit int) ([]store.Group, error) {
	var rows []groupRow
	if err := r.groupQuery(ctx, f, where, limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("group formulari by %s: %w", f, err)
	}
	groups := make([]store.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, store.Group{Key: row.Entity, Count: row.Total})
	}
	return groups, nil
}

func (r *Repository) groupQuery(ctx context.Context, f store.Field, where []store.Cond, limit int) *gorm.DB {
	conds := append([]store.Cond{store.NotNull(f)}, where...)
	tx := r.scoped(ctx, conds).
		Clauses(clause.Select{Expression: clause.Expr{SQL: "? AS entity, COUNT(*) AS total", Vars: []interface{}{fieldExpr(f)}}}).
		Group("entity").
		Order("total DESC, entity ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return tx
}

// Ping checks the connection backing the repository.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func buildConds(conds []store.Cond) []clause.Expression {
	exprs := make([]clause.Expression, 0, len(conds))
	for _, c := range conds {
		if expr := buildCond(c); expr != nil {
			exprs = append(exprs, expr)
		}
	}
	return exprs
}

func buildCond(c store.Cond) clause.Expression {
	switch c.Op {
	case store.OpAnd:
		children := buildConds(c.Children)
		if len(children) == 0 {
			return nil
		}
		return clause.And(children...)
	case store.OpOr:
		children := buildConds(c.Children)
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return clause.Or(children...)
	case store.OpEq:
		if c.Field.IsJSON() {
			return datatypes.JSONQuery(c.Field.Column).Equals(c.Value, c.Field.Path...)
		}
		return binary(c.Field, "=", c.Value)
	case store.OpNeq:
		return binary(c.Field, "IS DISTINCT FROM", jsonSafeValue(c.Field, c.Value))
	case store.OpIsNull:
		return clause.Expr{SQL: "? IS NULL", Vars: []interface{}{fieldExpr(c.Field)}}
	case store.OpNotNull:
		return clause.Expr{SQL: "? IS NOT NULL", Vars: []interface{}{fieldExpr(c.Field)}}
	case store.OpILike:
		pattern := "%" + store.EscapeLike(fmt.Sprint(c.Value)) + "%"
		return binary(c.Field, "ILIKE", pattern)
	case store.OpGte:
		return binary(c.Field, ">=", jsonSafeValue(c.Field, c.Value))
	case store.OpGt:
		return binary(c.Field, ">", jsonSafeValue(c.Field, c.Value))
	case store.OpLt:
		return binary(c.Field, "<", jsonSafeValue(c.Field, c.Value))
	case store.OpLte:
		return binary(c.Field, "<=", jsonSafeValue(c.Field, c.Value))
	}
	return nil
}

func binary(f store.Field, op string, value interface{}) clause.Expression {
	return clause.Expr{SQL: "? " + op + " ?", Vars: []interface{}{fieldExpr(f), value}}
}

// fieldExpr renders a column, or a JSON path extracted as text the same way
// datatypes.JSONQuery does for Postgres. Party columns read as NULL when
// they hold the "non presente" sentinel or a blank string, JSON columns when
// they hold a JSON null literal.
func fieldExpr(f store.Field) interface{} {
	if !f.IsJSON() {
		if isPartyColumn(f.Column) {
			return clause.Expr{SQL: partyColumnSQL(f.Column)}
		}
		if jsonColumns[f.Column] {
			return clause.Expr{SQL: "NULLIF(?::jsonb, 'null'::jsonb)", Vars: []interface{}{clause.Column{Name: f.Column}}}
		}
		return clause.Column{Name: f.Column}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Path)), ", ")
	vars := make([]interface{}, 0, len(f.Path)+1)
	vars = append(vars, clause.Column{Name: f.Column})
	for _, key := range f.Path {
		vars = append(vars, key)
	}
	return clause.Expr{SQL: "json_extract_path_text(?::json, " + placeholders + ")", Vars: vars}
}

func partyColumnSQL(column string) string {
	quoted := `"` + strings.ReplaceAll(column, `"`, `""`) + `"`
	return fmt.Sprintf("CASE WHEN lower(btrim(%[1]s)) IN ('', '%[2]s') THEN NULL ELSE %[1]s END", quoted, NotApplicable)
}

// jsonSafeValue compares JSON path text against text.
func jsonSafeValue(f store.Field, v interface{}) interface{} {
	if !f.IsJSON() {
		return v
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (row formularioRow) toDomain() Formulario {
	rec := Formulario{
		ID:                      row.ID,
		UID:                     row.UID,
		CreatedAt:               row.CreatedAt,
		NumeroFir:               row.NumeroFir,
		Produttore:              row.Produttore,
		UnitaLocaleProduttore:   row.UnitaLocaleProduttore,
		Trasportatore:           row.Trasportatore,
		Destinatario:            row.Destinatario,
		UnitaLocaleDestinatario: row.UnitaLocaleDestinatario,
		Intermediario:           row.Intermediario,
		IDAppuntamento:          row.IDAppuntamento,
		DataEmissione:           row.DataEmissione,
		DataMovimento:           row.DataMovimento,
	}
	rec.DatiFormulario = decodeColumn[DatiFormulario](row.UID, ColDatiFormulario, row.DatiFormulario)
	rec.DatiAppuntamento = decodeColumn[DatiAppuntamento](row.UID, ColDatiAppuntamento, row.DatiAppuntamento)
	rec.DatiInvioPEC = decodeColumn[DatiInvioPEC](row.UID, ColDatiInvioPEC, row.DatiInvioPEC)
	rec.RisultatiInvioPEC = decodeColumn[RisultatiInvioPEC](row.UID, ColRisultatiInvioPEC, row.RisultatiInvioPEC)
	if rec.RisultatiInvioPEC == nil && !isNullJSON(row.RisultatiInvioPEC) {
		// A send result SQL sees as present stays present, even unreadable.
		rec.RisultatiInvioPEC = &RisultatiInvioPEC{}
	}
	rec.FilePaths = decodeColumn[FilePaths](row.UID, ColFilePaths, row.FilePaths)
	return rec.Normalize()
}

var jsonColumns = map[string]bool{
	ColDatiFormulario:    true,
	ColDatiAppuntamento:  true,
	ColDatiInvioPEC:      true,
	ColRisultatiInvioPEC: true,
	ColFilePaths:         true,
}

func isNullJSON(raw datatypes.JSON) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// decodeColumn reads a nullable JSON column. Unreadable payloads are logged
// and treated as null rather than failing the whole page.
func decodeColumn[T any](uid, column string, raw datatypes.JSON) *T {
	if isNullJSON(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"uid":    uid,
			"column": column,
		}).Warn("Ignoring unreadable JSON column")
		return nil
	}
	return &v
}
