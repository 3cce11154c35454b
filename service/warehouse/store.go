/*
 * @module service/warehouse/store
 * @description 数据仓库访问层，负责动态表的读写、列校验与阶段结果的原子落库
 * @architecture 分层架构 - 数据访问层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 表存在性检查 -> 数据集读取 -> 引擎处理 -> 事务内整表重建写回
 * @rules 阶段输出整表替换且必须在单个事务内完成，失败回滚后旧表保持原样
 * @dependencies dataquality-service/service/data_quality, gorm.io/gorm
 * @refs service/pipeline_engine/
 */

package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dataquality-service/service/data_quality"

	"gorm.io/gorm"
)

// 单条 INSERT 语句携带的最大行数
const insertBatchSize = 500

// Store 仓库访问入口，按 schema 隔离流水线数据表
type Store struct {
	db     *gorm.DB
	schema string
}

// NewStore 创建仓库访问实例
func NewStore(db *gorm.DB, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{db: db, schema: schema}
}

// Schema 返回仓库 schema 名
func (s *Store) Schema() string {
	return s.schema
}

// Ping 探测仓库连接是否可用
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(new(int)).Error; err != nil {
		return fmt.Errorf("仓库连接检测失败: %w", err)
	}
	return nil
}

// quoteIdentifier 标识符加引号，内部双引号转义
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// isSQLite 判断底层方言是否为sqlite（测试库），sqlite没有information_schema
func (s *Store) isSQLite() bool {
	return s.db.Dialector.Name() == "sqlite"
}

// qualifiedTable schema 限定的表名，sqlite 无 schema 命名空间
func (s *Store) qualifiedTable(table string) string {
	if s.isSQLite() {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(s.schema) + "." + quoteIdentifier(table)
}

// TableExists 检查表是否存在
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if s.isSQLite() {
		var count int64
		checkSQL := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
		if err := s.db.WithContext(ctx).Raw(checkSQL, table).Scan(&count).Error; err != nil {
			return false, fmt.Errorf("检查表存在性失败: %w", err)
		}
		return count > 0, nil
	}

	var exists bool
	checkSQL := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`
	if err := s.db.WithContext(ctx).Raw(checkSQL, s.schema, table).Scan(&exists).Error; err != nil {
		return false, fmt.Errorf("检查表存在性失败: %w", err)
	}
	return exists, nil
}

// ListColumns 按定义顺序列出表的列名
func (s *Store) ListColumns(ctx context.Context, table string) ([]string, error) {
	columnSQL := `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	if s.isSQLite() {
		columnSQL = `SELECT name FROM pragma_table_info(?) ORDER BY cid`
		var columns []string
		if err := s.db.WithContext(ctx).Raw(columnSQL, table).Scan(&columns).Error; err != nil {
			return nil, fmt.Errorf("获取表列名失败: %w", err)
		}
		return columns, nil
	}

	var columns []string
	if err := s.db.WithContext(ctx).Raw(columnSQL, s.schema, table).Scan(&columns).Error; err != nil {
		return nil, fmt.Errorf("获取表列名失败: %w", err)
	}
	return columns, nil
}

// ListTablesWithSuffix 列出 schema 内以任一指定后缀结尾的表名
func (s *Store) ListTablesWithSuffix(ctx context.Context, suffixes ...string) ([]string, error) {
	if len(suffixes) == 0 {
		return nil, nil
	}

	var listSQL string
	var args []interface{}
	conditions := make([]string, 0, len(suffixes))

	if s.isSQLite() {
		for _, suffix := range suffixes {
			conditions = append(conditions, "name LIKE ?")
			args = append(args, "%"+suffix)
		}
		listSQL = fmt.Sprintf(`
			SELECT name FROM sqlite_master
			WHERE type = 'table' AND (%s)
			ORDER BY name`, strings.Join(conditions, " OR "))
	} else {
		args = append(args, s.schema)
		for i, suffix := range suffixes {
			conditions = append(conditions, fmt.Sprintf("table_name LIKE $%d", i+2))
			args = append(args, "%"+suffix)
		}
		listSQL = fmt.Sprintf(`
			SELECT table_name FROM information_schema.tables
			WHERE table_schema = $1 AND (%s)
			ORDER BY table_name`, strings.Join(conditions, " OR "))
	}

	var tables []string
	if err := s.db.WithContext(ctx).Raw(listSQL, args...).Scan(&tables).Error; err != nil {
		return nil, fmt.Errorf("列出仓库表失败: %w", err)
	}
	return tables, nil
}

// EnsureColumns 校验表包含全部指定列，缺失时返回 MissingColumnError
func (s *Store) EnsureColumns(ctx context.Context, table string, columns ...string) error {
	existing, err := s.ListColumns(ctx, table)
	if err != nil {
		return err
	}
	index := make(map[string]bool, len(existing))
	for _, col := range existing {
		index[col] = true
	}
	for _, col := range columns {
		if !index[col] {
			return &data_quality.MissingColumnError{Dataset: table, Column: col}
		}
	}
	return nil
}

// DropTable 删除表，表不存在时不算错误
func (s *Store) DropTable(ctx context.Context, table string) error {
	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.qualifiedTable(table))
	if err := s.db.WithContext(ctx).Exec(dropSQL).Error; err != nil {
		return fmt.Errorf("删除表失败: %w", err)
	}
	return nil
}

// CountRows 统计表行数
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.qualifiedTable(table))
	if err := s.db.WithContext(ctx).Raw(countSQL).Scan(&count).Error; err != nil {
		return 0, fmt.Errorf("统计表行数失败: %w", err)
	}
	return count, nil
}

// LoadDataset 把表读成内存数据集
// columns 为空时读取全部列，SQL NULL 读为 nil 表示缺失
func (s *Store) LoadDataset(ctx context.Context, datasetName, table string, columns []string) (*data_quality.Dataset, error) {
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("表 %s.%s 不存在", s.schema, table)
	}

	if len(columns) == 0 {
		columns, err = s.ListColumns(ctx, table)
		if err != nil {
			return nil, err
		}
	} else if err := s.EnsureColumns(ctx, table, columns...); err != nil {
		return nil, err
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}
	dataSQL := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), s.qualifiedTable(table))

	rows, err := s.db.WithContext(ctx).Raw(dataSQL).Rows()
	if err != nil {
		return nil, fmt.Errorf("查询数据失败: %w", err)
	}
	defer rows.Close()

	records := make([]data_quality.Record, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("扫描行数据失败: %w", err)
		}

		record := make(data_quality.Record, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = val
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历数据失败: %w", err)
	}

	slog.Debug("数据集读取完成", "table", table, "rows", len(records), "columns", len(columns))
	return data_quality.NewDataset(datasetName, columns, records), nil
}

// SaveDataset 把数据集整表写入仓库
// 在单个事务内完成删表重建与批量插入，任何一步失败整体回滚
func (s *Store) SaveDataset(ctx context.Context, dataset *data_quality.Dataset, table string) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := s.SaveDatasetTx(tx, dataset, table); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// SaveDatasetTx 在调用方事务内整表写入，供需要和其他落库动作同事务的场景使用
// 事务的提交与回滚由调用方负责
func (s *Store) SaveDatasetTx(tx *gorm.DB, dataset *data_quality.Dataset, table string) error {
	start := time.Now()

	fullTable := s.qualifiedTable(table)
	if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", fullTable)).Error; err != nil {
		return fmt.Errorf("删除旧表失败: %w", err)
	}

	columnDefs := make([]string, len(dataset.Columns))
	for i, col := range dataset.Columns {
		columnDefs[i] = quoteIdentifier(col) + " " + inferColumnType(dataset, col)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", fullTable, strings.Join(columnDefs, ", "))
	if err := tx.Exec(createSQL).Error; err != nil {
		return fmt.Errorf("创建表失败: %w", err)
	}

	if err := s.insertRows(tx, fullTable, dataset); err != nil {
		return err
	}

	slog.Info("数据集写入完成", "table", table,
		"rows", dataset.RowCount(), "duration", time.Since(start).String())
	return nil
}

// insertRows 按批拼多行 VALUES 插入
func (s *Store) insertRows(tx *gorm.DB, fullTable string, dataset *data_quality.Dataset) error {
	if dataset.RowCount() == 0 {
		return nil
	}

	quoted := make([]string, len(dataset.Columns))
	for i, col := range dataset.Columns {
		quoted[i] = quoteIdentifier(col)
	}
	columnList := strings.Join(quoted, ", ")

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(dataset.Columns)), ", ") + ")"

	for offset := 0; offset < len(dataset.Rows); offset += insertBatchSize {
		end := offset + insertBatchSize
		if end > len(dataset.Rows) {
			end = len(dataset.Rows)
		}
		batch := dataset.Rows[offset:end]

		placeholders := make([]string, len(batch))
		values := make([]interface{}, 0, len(batch)*len(dataset.Columns))
		for i, record := range batch {
			placeholders[i] = rowPlaceholder
			for _, col := range dataset.Columns {
				values = append(values, record[col])
			}
		}

		insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			fullTable, columnList, strings.Join(placeholders, ", "))
		if err := tx.Exec(insertSQL, values...).Error; err != nil {
			return fmt.Errorf("插入数据失败: %w", err)
		}
	}
	return nil
}

// inferColumnType 按列的首个非空值推断建表类型
func inferColumnType(dataset *data_quality.Dataset, column string) string {
	for _, record := range dataset.Rows {
		value := record[column]
		if value == nil {
			continue
		}
		switch value.(type) {
		case float32, float64:
			return "double precision"
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return "bigint"
		case bool:
			return "boolean"
		case time.Time:
			return "timestamptz"
		default:
			return "text"
		}
	}
	return "text"
}
