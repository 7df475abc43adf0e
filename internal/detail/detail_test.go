package detail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_CollapsesWhitespace(t *testing.T) {
	html := []byte(`<html><body>
		<div id="header">국회 의안정보시스템</div>
		<div id="summaryContentDiv">
			제안이유 및 주요내용
			<br/>
			현행법은   운전 중   휴대전화 사용을
			금지하고 있음.
		</div>
	</body></html>`)

	got := Extract(html)

	assert.Equal(t, OK, got.Failure)
	assert.True(t, got.Usable())
	assert.Equal(t, "제안이유 및 주요내용 현행법은 운전 중 휴대전화 사용을 금지하고 있음.", got.Text)
}

func TestExtract_ContainerMissing(t *testing.T) {
	got := Extract([]byte(`<html><body><div id="other">본문</div></body></html>`))

	assert.Equal(t, ContentMissing, got.Failure)
	assert.False(t, got.Usable())
	assert.Equal(t, "내용 없음", got.String())
}

func TestExtract_EmptyContainerIsNotUsable(t *testing.T) {
	got := Extract([]byte(`<div id="summaryContentDiv">   </div>`))

	assert.Equal(t, OK, got.Failure)
	assert.False(t, got.Usable())
}

func TestFromPage_PassesFailuresThrough(t *testing.T) {
	for _, f := range []Failure{NoLink, FetchFailed, FetchError} {
		got := FromPage(FailedPage(f))
		assert.Equal(t, f, got.Failure)
		assert.False(t, got.Usable())
	}
}

func TestFailureStrings(t *testing.T) {
	assert.Equal(t, "상세 링크 없음", NoLink.String())
	assert.Equal(t, "크롤링 실패", FetchFailed.String())
	assert.Equal(t, "크롤링 오류", FetchError.String())
	assert.Equal(t, "no_link", NoLink.Label())
	assert.Equal(t, "content_missing", ContentMissing.Label())
}
