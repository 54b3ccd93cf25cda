/*
Copyright 2023 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package artifact

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/swoehrl-mw/flux-helmfile-controller/internal/store"
)

func TestFetchAndExtractCacheHitSkipsDownload(t *testing.T) {
	g := NewWithT(t)
	f := New()
	prior := &store.CachedExtraction{CurrentDigest: "sha256:abc", Dir: "/tmp/prior-dir"}
	a := Artifact{URL: "http://unreachable.invalid/artifact.tar.gz", Digest: "sha256:abc"}

	dir, digest, err := f.FetchAndExtract(t.TempDir(), prior, a)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dir).To(Equal(prior.Dir))
	g.Expect(digest).To(Equal("sha256:abc"))
}

func TestFetchAndExtractCacheMissOnDigestChange(t *testing.T) {
	g := NewWithT(t)
	f := New()
	prior := &store.CachedExtraction{CurrentDigest: "sha256:old", Dir: "/tmp/prior-dir"}
	a := Artifact{URL: "http://127.0.0.1:0/artifact.tar.gz", Digest: "sha256:new"}

	_, _, err := f.FetchAndExtract(t.TempDir(), prior, a)

	g.Expect(err).To(HaveOccurred())
}

func TestDigestKeyFallsBackToPathWhenDigestEmpty(t *testing.T) {
	g := NewWithT(t)
	f := New()
	prior := &store.CachedExtraction{CurrentDigest: "foo_bar.tar.gz", Dir: "/tmp/prior-dir"}
	a := Artifact{URL: "http://unreachable.invalid/artifact.tar.gz", Path: "foo/bar.tar.gz"}

	dir, digest, err := f.FetchAndExtract(t.TempDir(), prior, a)

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(dir).To(Equal(prior.Dir))
	g.Expect(digest).To(Equal("foo_bar.tar.gz"))
}
