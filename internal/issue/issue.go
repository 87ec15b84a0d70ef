// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies a catalog entry.
type Id int

const (
	ManifestNotFoundId Id = iota + 1
	ManifestResolutionFailedId
	ResolverToolNotFoundId
	BundleMissingId
	AssetAcquisitionFailedId
	CredentialNotFoundId
	ServiceUnhealthyId
	StagefileNotFoundId
	StagefileParseErrorId
	ConfigLoadFailedId
)

// MarkdownMsg is markdown text rendered to the terminal via glamour.
type MarkdownMsg string

// HttpLink points at documentation for an issue.
type HttpLink string

// Issue couples a fatal error class with rendered guidance.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	docLinks []HttpLink
}

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render produces terminal-ready output for the issue using the given
// glamour style path ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- " + string(link) + "\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	// render is a seam for tests; glamour.Render hits the real renderer.
	render = glamour.Render

	manifestResolutionFailedIssue = &Issue{
		id: ManifestResolutionFailedId,
		mdMsg: `
# Dependency resolution failed

The resolver could not satisfy the dependency manifest. The build was
aborted and no artifact was produced.

## Things you can try
- Read the resolver output above for the offending package and constraint
- Loosen an over-pinned constraint in the manifest:
~~~yaml
packages:
  - name: ultralytics
    constraint: ">=8.0.0"
~~~
- Verify the package index is reachable from the build host`,
	}

	resolverToolNotFoundIssue = &Issue{
		id: ResolverToolNotFoundId,
		mdMsg: `
# No resolver tool available

Dependency resolution shells out to a pip-compatible installer, but none
was found on PATH.

## Things you can try
- Install pip (or set a custom binary):
~~~
$ inferpack config show
~~~
- Point the resolver at an explicit binary in your config file:
~~~cue
resolver: binary: "/usr/local/bin/pip3"
~~~`,
	}

	bundleMissingIssue = &Issue{
		id: BundleMissingId,
		mdMsg: `
# Dependency bundle missing

The artifact assembler needs a resolved dependency bundle, but none exists
for the current manifest hash. Assembly was aborted.

## Things you can try
- Run a full build so resolution happens first:
~~~
$ inferpack build
~~~
- If the cache was cleared manually, rebuild with --force`,
	}

	assetAcquisitionFailedIssue = &Issue{
		id: AssetAcquisitionFailedId,
		mdMsg: `
# Asset acquisition failed

The runtime bootstrapper could not fetch the external asset (e.g., model
weights). The process exits non-zero; restart policy belongs to your
supervisor.

## Things you can try
- Check that the asset source URL is reachable from the runtime host
- Pre-place the asset at its expected path to skip acquisition entirely
- Disable acquisition if the asset ships some other way:
~~~
$ INFERPACK_FETCH_ASSETS=false inferpack run
~~~`,
	}

	stagefileNotFoundIssue = &Issue{
		id: StagefileNotFoundId,
		mdMsg: `
# No stagefile found

We looked for a stagefile.cue but could not find one.

## Things you can try
- Create a starter stagefile in the current directory:
~~~
$ inferpack init
~~~
- Or point the build at an explicit recipe:
~~~
$ inferpack build -f path/to/stagefile.cue
~~~`,
	}

	issueCatalog = map[Id]*Issue{
		ManifestResolutionFailedId: manifestResolutionFailedIssue,
		ResolverToolNotFoundId:     resolverToolNotFoundIssue,
		BundleMissingId:            bundleMissingIssue,
		AssetAcquisitionFailedId:   assetAcquisitionFailedIssue,
		StagefileNotFoundId:        stagefileNotFoundIssue,
	}
)

// Lookup returns the catalog entry for id, or nil when no guidance exists.
func Lookup(id Id) *Issue {
	return issueCatalog[id]
}

// CatalogIds returns the ids with catalog entries, sorted ascending.
func CatalogIds() []Id {
	ids := maps.Keys(issueCatalog)
	slices.Sort(ids)
	return ids
}
