// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrStepNotFound = errors.New("step not found")
var ErrCorruptPlan = errors.New("corrupt plan document")
