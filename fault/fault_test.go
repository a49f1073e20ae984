/*
Copyright (C) 2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package fault

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raise() error {
	return New(Unresolved, "label %q", "loop")
}

func TestLocation(t *testing.T) {
	err := raise()
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "fault_test.go", e.File)
	assert.Equal(t, "fault.raise", e.Func)
	assert.NotZero(t, e.Line)
	assert.Equal(t, `unresolved: label "loop"`, e.Error())
}

func TestIsThroughWrapping(t *testing.T) {
	inner := Full("stack", 8)
	outer := fmt.Errorf("run: %w", inner)
	assert.True(t, Is(outer, Capacity))
	assert.False(t, Is(outer, Platform))

	chained := Wrap(Structure, inner, "compile loop %d", 2)
	assert.True(t, Is(chained, Structure))
	assert.True(t, Is(chained, Capacity))
	assert.False(t, Is(errors.New("plain"), Capacity))
}

func TestDescribe(t *testing.T) {
	inner := Full("stack", 8)
	outer := Wrap(Structure, inner, "compile")
	line := Describe(outer)
	assert.True(t, strings.HasPrefix(line, inner.Location()+": "), line)
	assert.Contains(t, line, "capacity 8")
	assert.Equal(t, "plain", Describe(errors.New("plain")))
}
