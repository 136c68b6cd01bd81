// Copyright 2024 gorse Project Authors
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

package blob

import (
	"testing"

	"github.com/gorse-io/fairness/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, config.DataConfig{})
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)
	assert.Equal(t, dir, store.(*POSIX).dir)

	store, err = Open("file://"+dir, config.DataConfig{})
	assert.NoError(t, err)
	assert.Equal(t, dir, store.(*POSIX).dir)

	store, err = Open("s3://gorse/data/ml1m", config.DataConfig{S3: config.S3Config{Endpoint: "localhost:9000"}})
	assert.NoError(t, err)
	assert.Equal(t, "gorse", store.(*S3).bucket)
	assert.Equal(t, "data/ml1m", store.(*S3).prefix)

	store, err = Open("azblob://gorse/data", config.DataConfig{Azure: config.AzureBlobConfig{
		AccountName: "devstoreaccount1",
		AccountKey:  "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==",
	}})
	assert.NoError(t, err)
	assert.Equal(t, "gorse", store.(*AzureBlob).container)
	assert.Equal(t, "data", store.(*AzureBlob).prefix)

	_, err = Open("azblob://gorse/data", config.DataConfig{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Open("s3:///data", config.DataConfig{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = Open("ftp://localhost/data", config.DataConfig{})
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestTrimPrefix(t *testing.T) {
	assert.Equal(t, "a/b", trimPrefix("a/b", ""))
	assert.Equal(t, "b", trimPrefix("a/b", "a"))
	assert.Equal(t, "", trimPrefix("a", "a"))
}
