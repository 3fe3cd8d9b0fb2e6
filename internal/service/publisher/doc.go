// Package publisher attaches a release archive to a GitHub Release.
//
// The release for the tag is looked up first among the latest release, then
// across all releases; when neither has it a draft release is created. The
// archive is then uploaded to the upload_url of that release. Only a 201
// answer counts as success, and transport failures are classified so the
// log says what actually went wrong.
package publisher
