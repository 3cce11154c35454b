/*
 * @module service/warehouse/staging_loader
 * @description 暂存区装载器，把 CSV 源文件装载进仓库暂存表，空白单元格落为 SQL NULL
 * @architecture 分层架构 - 数据接入层
 * @documentReference ai_docs/quality_pipeline_design.md
 * @stateFlow 读文件 -> 编码转换 -> 表头解析 -> 逐行类型推断 -> 整表写入暂存表
 * @rules 空字符串与 NULL 字面量一律落为 nil，数值单元格推断为数值类型，推断失败保留原文
 * @dependencies dataquality-service/service/data_quality, dataquality-service/service/utils, encoding/csv
 * @refs service/warehouse/store.go
 */

package warehouse

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"dataquality-service/service/data_quality"
	"dataquality-service/service/utils"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// 这些字面量在装载时视为缺失
var defaultNullLiterals = []string{"", "NULL", "null", `\N`}

// LoadOptions 装载选项
type LoadOptions struct {
	Encoding     string   `json:"encoding"`      // utf-8（默认）或 gbk
	NullLiterals []string `json:"null_literals"` // 追加的缺失字面量
	Delimiter    rune     `json:"-"`             // 默认逗号
}

// LoadReport 装载结果报告
type LoadReport struct {
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
	Rows      int64    `json:"rows"`
	NullCells int64    `json:"null_cells"`
}

// StagingLoader 暂存区装载器
type StagingLoader struct {
	store     *Store
	converter *utils.DataConverter
}

// NewStagingLoader 创建暂存区装载器
func NewStagingLoader(store *Store) *StagingLoader {
	return &StagingLoader{
		store:     store,
		converter: utils.NewDataConverter(),
	}
}

// LoadCSVFile 从文件路径装载 CSV 到暂存表
func (l *StagingLoader) LoadCSVFile(ctx context.Context, path, table string, opts LoadOptions) (*LoadReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开源文件失败: %w", err)
	}
	defer file.Close()
	return l.LoadCSV(ctx, file, table, opts)
}

// LoadCSV 从数据流装载 CSV 到暂存表
func (l *StagingLoader) LoadCSV(ctx context.Context, reader io.Reader, table string, opts LoadOptions) (*LoadReport, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取源数据失败: %w", err)
	}

	if strings.EqualFold(opts.Encoding, "gbk") || strings.EqualFold(opts.Encoding, "gb2312") {
		raw, err = l.converter.ConvertEncoding(raw, opts.Encoding, "utf-8")
		if err != nil {
			return nil, fmt.Errorf("编码转换失败: %w", err)
		}
	}
	raw = bytes.TrimPrefix(raw, byteOrderMark)

	csvReader := csv.NewReader(bytes.NewReader(raw))
	if opts.Delimiter != 0 {
		csvReader.Comma = opts.Delimiter
	}
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = l.converter.NormalizeString(name)
	}

	nullLiterals := make(map[string]bool, len(defaultNullLiterals)+len(opts.NullLiterals))
	for _, lit := range defaultNullLiterals {
		nullLiterals[lit] = true
	}
	for _, lit := range opts.NullLiterals {
		nullLiterals[lit] = true
	}

	records := make([]data_quality.Record, 0)
	var nullCells int64
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析 CSV 行失败: %w", err)
		}

		record := make(data_quality.Record, len(columns))
		for i, col := range columns {
			if i >= len(row) {
				record[col] = nil
				nullCells++
				continue
			}
			cell := strings.TrimSpace(row[i])
			if nullLiterals[cell] {
				record[col] = nil
				nullCells++
				continue
			}
			record[col] = coerceCell(cell)
		}
		records = append(records, record)
	}

	dataset := data_quality.NewDataset(table, columns, records)
	if err := l.store.SaveDataset(ctx, dataset, table); err != nil {
		return nil, err
	}

	report := &LoadReport{
		Table:     table,
		Columns:   columns,
		Rows:      int64(len(records)),
		NullCells: nullCells,
	}
	slog.Info("暂存表装载完成", "table", table, "rows", report.Rows, "null_cells", nullCells)
	return report, nil
}

// coerceCell 单元格类型推断，整数优先于浮点，失败保留原文
func coerceCell(cell string) interface{} {
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}
