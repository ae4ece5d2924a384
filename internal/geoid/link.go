package geoid

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TractColumn is the derived join-key column added to the main table.
const TractColumn = "tract_geoid"

// LinkLifeExpectancy derives a tract-level key from the block-group
// identifier column and left-joins the life-expectancy table on it.
// Unmatched rows keep missing life-expectancy values; nothing is
// fabricated. The life table must carry TractColumn as its key.
func LinkLifeExpectancy(df, life dataframe.DataFrame, idCol string) (dataframe.DataFrame, error) {
	ids := df.Col(idCol).Records()
	tracts := make([]string, len(ids))
	for i, id := range ids {
		tract, err := TractID(id)
		if err != nil {
			return dataframe.DataFrame{}, eris.Wrapf(err, "link: row %d", i)
		}
		tracts[i] = tract
	}

	joined := df.
		Mutate(series.New(tracts, series.String, TractColumn)).
		LeftJoin(life, TractColumn)
	if joined.Err != nil {
		return dataframe.DataFrame{}, eris.Wrap(joined.Err, "link: left join life expectancy")
	}

	zap.L().Debug("linked life expectancy",
		zap.Int("rows", joined.Nrow()),
		zap.Int("life_rows", life.Nrow()),
	)
	return joined, nil
}
