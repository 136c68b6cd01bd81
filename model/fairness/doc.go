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

// Package fairness computes group-fairness-aware accuracy metrics of group recommendations.
//
// Every member of a group receives the same ranked list of items. A member's reward for the
// list is read from the rating matrix and summarized twice: as average rating (AR) and as
// normalized discounted cumulative gain (nDCG). Within a group, the member values are reduced
// to their mean, minimum, min/max ratio and population standard deviation, and the group
// values are finally averaged across groups.
package fairness
