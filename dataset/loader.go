// Copyright 2026 gorse Project Authors
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

// Package dataset reads evaluation folds laid out as
//
//	<type>_group_<size>           groups shared by all folds
//	<fold>/mf_data.npy            rating matrix of a fold
//	<fold>/<type>/<size>/<alg>    recommendations of an algorithm
//
// from a blob store.
package dataset

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorse-io/fairness/base/log"
	"github.com/gorse-io/fairness/model/fairness"
	"github.com/gorse-io/fairness/storage/blob"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

const RatingFile = "mf_data.npy"

// GroupFile returns the name of the group file for a group type and size.
func GroupFile(groupType string, groupSize int) string {
	return fmt.Sprintf("%s_group_%d", groupType, groupSize)
}

// Loader loads folds from a blob store. The file listing is fetched once.
type Loader struct {
	store blob.Store
	once  sync.Once
	names []string
	err   error
}

func NewLoader(store blob.Store) *Loader {
	return &Loader{store: store}
}

func (l *Loader) list() ([]string, error) {
	l.once.Do(func() {
		l.names, l.err = l.store.List()
		if l.err == nil {
			log.Logger().Debug("list data files", zap.Int("n_files", len(l.names)))
		}
	})
	return l.names, errors.Trace(l.err)
}

// ListFolds returns numeric fold directories containing a rating matrix in ascending order.
func (l *Loader) ListFolds() ([]int, error) {
	names, err := l.list()
	if err != nil {
		return nil, err
	}
	var folds []int
	for _, name := range names {
		dir, file := path.Split(name)
		if file != RatingFile {
			continue
		}
		fold, err := strconv.Atoi(strings.TrimSuffix(dir, "/"))
		if err != nil || fold < 0 {
			continue
		}
		folds = append(folds, fold)
	}
	folds = lo.Uniq(folds)
	sort.Ints(folds)
	return folds, nil
}

// LoadRatingMatrix loads the rating matrix of a fold.
func (l *Loader) LoadRatingMatrix(fold int) (*mat.Dense, error) {
	name := path.Join(strconv.Itoa(fold), RatingFile)
	r, err := l.store.Open(name)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", name)
	}
	defer r.Close()
	m, err := ReadMatrix(r)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", name)
	}
	return m, nil
}

// LoadGroups loads groups of a type and size. Each line holds a group id followed by
// at least size member indices, separated by tabs.
func (l *Loader) LoadGroups(groupType string, groupSize int) ([]fairness.Group, error) {
	name := GroupFile(groupType, groupSize)
	r, err := l.store.Open(name)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", name)
	}
	defer r.Close()
	var groups []fairness.Group
	err = ReadLines(r, '\t', func(i int, fields []string) error {
		if len(fields) < groupSize+1 {
			return errors.NotValidf("group at line %d of %s with %d fields", i+1, name, len(fields))
		}
		ids, err := parseInts(fields)
		if err != nil {
			return errors.Annotatef(err, "line %d of %s", i+1, name)
		}
		groups = append(groups, fairness.Group{ID: ids[0], Members: ids[1:]})
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return groups, nil
}

// ListAlgorithms returns names of recommendation files of a fold in lexicographic order.
func (l *Loader) ListAlgorithms(fold int, groupType string, groupSize int) ([]string, error) {
	names, err := l.list()
	if err != nil {
		return nil, err
	}
	dir := path.Join(strconv.Itoa(fold), groupType, strconv.Itoa(groupSize)) + "/"
	var algorithms []string
	for _, name := range names {
		if alg, ok := strings.CutPrefix(name, dir); ok && alg != "" && !strings.Contains(alg, "/") {
			algorithms = append(algorithms, alg)
		}
	}
	sort.Strings(algorithms)
	return algorithms, nil
}

// LoadRecommendations loads the ranked list of every group. Lines hold a group id and an
// item index; further columns are ignored. Line order is rank order.
func (l *Loader) LoadRecommendations(fold int, groupType string, groupSize int, algorithm string) (fairness.Recommendations, error) {
	name := path.Join(strconv.Itoa(fold), groupType, strconv.Itoa(groupSize), algorithm)
	r, err := l.store.Open(name)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", name)
	}
	defer r.Close()
	recommendations := make(fairness.Recommendations)
	err = ReadLines(r, '\t', func(i int, fields []string) error {
		if len(fields) < 2 {
			return errors.NotValidf("recommendation at line %d of %s with %d fields", i+1, name, len(fields))
		}
		ids, err := parseInts(fields[:2])
		if err != nil {
			return errors.Annotatef(err, "line %d of %s", i+1, name)
		}
		recommendations[ids[0]] = append(recommendations[ids[0]], ids[1])
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return recommendations, nil
}

func parseInts(fields []string) ([]int, error) {
	ids := make([]int, len(fields))
	for i, field := range fields {
		id, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, errors.NewNotValid(err, fmt.Sprintf("index %q", field))
		}
		ids[i] = id
	}
	return ids, nil
}
