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

// Package server_structs shares structs and their methods used across the
// storage client, the signed-URL layer and the web API.
//
// It should only import lower level packages (config/param/etc).
package server_structs

import (
	"strings"

	"github.com/pkg/errors"
)

type (
	// Bucket identifies one of the storage buckets media lives in.
	Bucket string

	// ObjectKey uniquely identifies a remote object, and therefore its
	// signed URL.
	ObjectKey struct {
		Bucket Bucket `json:"bucket"`
		Path   string `json:"path"`
	}
)

const (
	MediaBucket      Bucket = "media"
	ThumbnailsBucket Bucket = "thumbnails"
	AvatarsBucket    Bucket = "avatars"
	UploadsBucket    Bucket = "uploads"
)

var ErrUnknownBucket = errors.New("unknown bucket")

// AllBuckets returns every bucket identifier the service recognizes.
func AllBuckets() []Bucket {
	return []Bucket{MediaBucket, ThumbnailsBucket, AvatarsBucket, UploadsBucket}
}

func (b Bucket) String() string {
	return string(b)
}

func (b Bucket) IsKnown() bool {
	switch b {
	case MediaBucket, ThumbnailsBucket, AvatarsBucket, UploadsBucket:
		return true
	}
	return false
}

// ParseBucket converts a raw identifier into a Bucket, rejecting anything
// outside the fixed set.
func ParseBucket(raw string) (Bucket, error) {
	b := Bucket(strings.TrimSpace(raw))
	if !b.IsKnown() {
		return "", errors.Wrapf(ErrUnknownBucket, "%q", raw)
	}
	return b, nil
}

func NewObjectKey(bucket Bucket, path string) ObjectKey {
	return ObjectKey{Bucket: bucket, Path: path}
}

func (k ObjectKey) String() string {
	return string(k.Bucket) + "/" + k.Path
}
