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
	"io"
	"net/url"
	"strings"

	"github.com/gorse-io/fairness/config"
	"github.com/juju/errors"
)

const (
	FilePrefix  = "file://"
	S3Prefix    = "s3://"
	GCSPrefix   = "gs://"
	AzurePrefix = "azblob://"
)

// Store is a flat namespace of files. Names use forward slashes.
type Store interface {
	// Open a file for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a file for writing. The done channel is closed once the content is persisted.
	Create(name string) (io.WriteCloser, chan struct{}, error)
	// List names of all files.
	List() ([]string, error)
	// Remove a file.
	Remove(name string) error
}

// Open a store by URL. Paths without a scheme are local directories.
func Open(rawURL string, cfg config.DataConfig) (Store, error) {
	switch {
	case strings.HasPrefix(rawURL, S3Prefix):
		bucket, prefix, err := parseBucket(rawURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		s3Config := cfg.S3
		s3Config.Bucket, s3Config.Prefix = bucket, prefix
		return NewS3(s3Config)
	case strings.HasPrefix(rawURL, GCSPrefix):
		bucket, prefix, err := parseBucket(rawURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		gcsConfig := cfg.GCS
		gcsConfig.Bucket, gcsConfig.Prefix = bucket, prefix
		return NewGCS(gcsConfig)
	case strings.HasPrefix(rawURL, AzurePrefix):
		container, prefix, err := parseBucket(rawURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.HasPrefix(rawURL, FilePrefix):
		return NewPOSIX(strings.TrimPrefix(rawURL, FilePrefix)), nil
	case strings.Contains(rawURL, "://"):
		return nil, errors.NotSupportedf("blob store %s", rawURL)
	default:
		return NewPOSIX(rawURL), nil
	}
}

// parseBucket splits `scheme://bucket/prefix`.
func parseBucket(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if parsed.Host == "" {
		return "", "", errors.NotValidf("bucket of %s", rawURL)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// trimPrefix converts an object key to a name relative to prefix.
func trimPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	name := strings.TrimPrefix(key, prefix)
	return strings.TrimPrefix(name, "/")
}
