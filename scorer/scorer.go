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

package scorer

import (
	"context"
	"fmt"

	"github.com/gorse-io/reelrecs/dataset"
	"github.com/gorse-io/reelrecs/logics"
	"github.com/juju/errors"
)

// Scorer scores feature records of a user. The result has the same length and
// order as features.
type Scorer interface {
	Score(ctx context.Context, userId dataset.UserId, features []logics.CandidateFeatures) ([]float64, error)
}

// RemoteError is a failure of the scoring service: transport, protocol, or a
// response of the wrong length. A request hitting it is aborted without retry.
type RemoteError struct {
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote scoring: %v", e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError reports whether err was raised by the scoring service.
func IsRemoteError(err error) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr)
}

// checkLength turns a short or long response into a RemoteError.
func checkLength(expected int, scores []float64) error {
	if len(scores) != expected {
		return &RemoteError{Err: errors.Errorf("expected %d scores but received %d", expected, len(scores))}
	}
	return nil
}
