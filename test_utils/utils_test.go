/***************************************************************
 *
 * Copyright (C) 2026, Pelican Project, Morgridge Institute for Research
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you
 * may not use this file except in compliance with the License.  You may
 * obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 ***************************************************************/

package test_utils

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mediadeck/mediadeck/config"
)

func TestSetupTestLogging(t *testing.T) {
	logger := logrus.StandardLogger()
	origLevel := logger.GetLevel()

	restore := SetupTestLogging(t)
	assert.Equal(t, io.Discard, logger.Out)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	require.Len(t, logger.Hooks[logrus.InfoLevel], 1)

	hook, ok := logger.Hooks[logrus.InfoLevel][0].(*testLogHook)
	require.True(t, ok)
	logrus.Info("captured while the test runs")
	logrus.Debug("debug lines are captured too")
	hook.mu.Lock()
	assert.Len(t, hook.entries, 2)
	hook.mu.Unlock()

	restore()
	assert.Equal(t, origLevel, logger.GetLevel())
	assert.Empty(t, logger.Hooks[logrus.InfoLevel])
}

func TestTestContext(t *testing.T) {
	ctx, cancel, egrp := TestContext(context.Background(), t)
	fromCtx, ok := ctx.Value(config.EgrpKey).(*errgroup.Group)
	require.True(t, ok)
	assert.Same(t, egrp, fromCtx)

	failure := errors.New("worker failed")
	egrp.Go(func() error { return failure })
	<-ctx.Done()
	assert.ErrorIs(t, egrp.Wait(), failure)
	cancel()
}
