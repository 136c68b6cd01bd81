// Copyright 2022 gorse Project Authors
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

package storage

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/schema"
)

func TestAppendURLParams(t *testing.T) {
	rawURL, err := AppendURLParams("sqlite:///tmp/results.db", []lo.Tuple2[string, string]{
		{"_pragma", "busy_timeout(10000)"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/results.db?_pragma=busy_timeout%2810000%29", rawURL)
}

func TestAppendMySQLParams(t *testing.T) {
	dsn, err := AppendMySQLParams("root:password@tcp(127.0.0.1:3306)/gorse?parseTime=false", map[string]string{
		"parseTime": "true",
		"loc":       "UTC",
	})
	assert.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=false")
	assert.Contains(t, dsn, "loc=UTC")
}

func TestTablePrefix(t *testing.T) {
	assert.Equal(t, "gorse_results", TablePrefix("gorse_").ResultsTable())
	config := NewGORMConfig("gorse_")
	assert.Equal(t, "gorse_results", config.NamingStrategy.(schema.NamingStrategy).TableName("SQLResult"))
}
