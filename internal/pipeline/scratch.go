/*
 * stencilc - transactional scratch-file output (section 7)
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteTransactional writes the bytes produced by write to a scratch file in
// the same directory as finalPath, then renames it into place. If write
// returns an error, or the scratch file cannot be synced, no partial output
// is ever visible at finalPath: section 7's propagation policy discards
// partial outputs rather than letting callers observe them.
func WriteTransactional(finalPath string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(finalPath)
	f, err := os.CreateTemp(dir, ".stencilc-scratch-*")
	if err != nil {
		return fmt.Errorf("pipeline: creating scratch file for %s: %w", finalPath, err)
	}
	scratchPath := f.Name()
	defer func() {
		if err != nil {
			os.Remove(scratchPath)
		}
	}()

	if err = write(f); err != nil {
		f.Close()
		return fmt.Errorf("pipeline: writing %s: %w", finalPath, err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("pipeline: syncing %s: %w", finalPath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("pipeline: closing scratch file for %s: %w", finalPath, err)
	}
	if err = os.Rename(scratchPath, finalPath); err != nil {
		return fmt.Errorf("pipeline: renaming scratch file into %s: %w", finalPath, err)
	}
	return nil
}
