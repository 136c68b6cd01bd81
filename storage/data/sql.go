// Copyright 2021 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorse-io/fairness/storage"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLResult is the row layout of results.
type SQLResult struct {
	Run       string    `gorm:"column:run;type:varchar(256);primaryKey"`
	Algorithm string    `gorm:"column:algorithm;type:varchar(256);primaryKey"`
	Metric    string    `gorm:"column:metric;type:varchar(64);primaryKey"`
	Batch     string    `gorm:"column:batch;type:varchar(36)"`
	GroupType string    `gorm:"column:group_type;type:varchar(256)"`
	GroupSize int       `gorm:"column:group_size"`
	Value     float64   `gorm:"column:value"`
	Timestamp time.Time `gorm:"column:time_stamp"`
}

func newSQLResult(r Result) SQLResult {
	return SQLResult{
		Run:       r.Run,
		Algorithm: r.Algorithm,
		Metric:    r.Metric,
		Batch:     r.Batch,
		GroupType: r.GroupType,
		GroupSize: r.GroupSize,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	}
}

func (r SQLResult) toResult() Result {
	return Result{
		Run:       r.Run,
		Algorithm: r.Algorithm,
		Batch:     r.Batch,
		GroupType: r.GroupType,
		GroupSize: r.GroupSize,
		Metric:    r.Metric,
		Value:     r.Value,
		Timestamp: r.Timestamp,
	}
}

type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

func (d *SQLDatabase) Init() error {
	return errors.Trace(d.gormDB.AutoMigrate(&SQLResult{}))
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) Purge() error {
	if d.gormDB.Migrator().HasTable(&SQLResult{}) {
		return errors.Trace(d.gormDB.Where("1 = 1").Delete(&SQLResult{}).Error)
	}
	return nil
}

func (d *SQLDatabase) PutResults(ctx context.Context, results []Result) error {
	if len(results) == 0 {
		return nil
	}
	start := time.Now()
	rows := make([]SQLResult, len(results))
	for i, r := range results {
		rows[i] = newSQLResult(r)
	}
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run"}, {Name: "algorithm"}, {Name: "metric"}},
		DoUpdates: clause.AssignmentColumns([]string{"batch", "group_type", "group_size", "value", "time_stamp"}),
	}).Create(&rows).Error
	if err != nil {
		return errors.Trace(err)
	}
	PutResultsSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func (d *SQLDatabase) GetResults(ctx context.Context, run string) ([]Result, error) {
	start := time.Now()
	var rows []SQLResult
	err := d.gormDB.WithContext(ctx).
		Where("run = ?", run).
		Order("algorithm").Order("metric").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = row.toResult()
	}
	GetResultsSeconds.Observe(time.Since(start).Seconds())
	return results, nil
}

func (d *SQLDatabase) ListRuns(ctx context.Context) ([]string, error) {
	var runs []string
	err := d.gormDB.WithContext(ctx).Model(&SQLResult{}).
		Distinct("run").Order("run").
		Pluck("run", &runs).Error
	return runs, errors.Trace(err)
}
