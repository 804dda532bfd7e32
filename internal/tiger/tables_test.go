package tiger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadURL(t *testing.T) {
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2024/PLACE/tl_2024_27_place.zip",
		DownloadURL("", Place, 2024, "27"))
	assert.Equal(t,
		"https://www2.census.gov/geo/tiger/TIGER2023/COUNTY/tl_2023_us_county.zip",
		DownloadURL(DefaultBaseURL, County, 2023, "27"))
	assert.Equal(t,
		"http://mirror.local/TIGER2024/PLACE/tl_2024_11_place.zip",
		DownloadURL("http://mirror.local/", Place, 2024, "11"))
}

func TestStateFIPS(t *testing.T) {
	assert.Len(t, StateFIPS, 51)
	assert.Equal(t, "27", StateFIPS["Minnesota"])
	assert.Equal(t, "11", StateFIPS["District of Columbia"])

	name, ok := StateName("18")
	assert.True(t, ok)
	assert.Equal(t, "Indiana", name)

	_, ok = StateName("99")
	assert.False(t, ok)
}

func TestAllStates(t *testing.T) {
	names := AllStates()
	assert.Len(t, names, 51)
	assert.Equal(t, "Alabama", names[0])
	assert.Equal(t, "Wyoming", names[len(names)-1])
}
