package telegram

import (
	"sort"
	"time"
)

// Known (user id, registration time) points. Ids are roughly monotonic in
// registration time, so dates between points are interpolated.
var registrationPoints = []struct {
	id int64
	at int64 // unix seconds
}{
	{2768409, 1383264000},
	{7679610, 1388448000},
	{11538514, 1391212000},
	{15835244, 1392940000},
	{23646077, 1393459000},
	{38015510, 1393632000},
	{44634663, 1399334000},
	{46145305, 1400198000},
	{54845238, 1411257000},
	{63263518, 1414454000},
	{101260938, 1425600000},
	{101323197, 1426204000},
	{103151531, 1433376000},
	{103258382, 1432771000},
	{109393468, 1439078000},
	{111220210, 1429574000},
	{112594714, 1439683000},
	{116812045, 1437696000},
	{122600695, 1437782000},
	{124872445, 1439856000},
	{125828524, 1444003000},
	{130029930, 1441324000},
	{133909606, 1444176000},
	{143445125, 1448928000},
	{148670295, 1452211000},
	{152079341, 1453420000},
	{157242073, 1446768000},
	{171295414, 1457481000},
	{181783990, 1460246000},
	{222021233, 1465344000},
	{225034354, 1466208000},
	{278941742, 1473465000},
	{285253072, 1476835000},
	{294851037, 1479600000},
	{297621225, 1481846000},
	{328594461, 1482969000},
	{337808429, 1487707000},
	{341546272, 1487782000},
	{352940995, 1487894000},
	{369669043, 1490918000},
	{400169472, 1501459000},
	{805158066, 1563208000},
	{1974255900, 1634000000},
}

// EstimateRegistration returns the approximate registration time of a
// Telegram account. Ids outside the known range clamp to the nearest point.
func EstimateRegistration(userID int64) time.Time {
	pts := registrationPoints
	if userID <= pts[0].id {
		return time.Unix(pts[0].at, 0).UTC()
	}
	last := pts[len(pts)-1]
	if userID >= last.id {
		return time.Unix(last.at, 0).UTC()
	}

	i := sort.Search(len(pts), func(i int) bool { return pts[i].id >= userID })
	lo, hi := pts[i-1], pts[i]
	ratio := float64(userID-lo.id) / float64(hi.id-lo.id)
	at := float64(lo.at) + ratio*float64(hi.at-lo.at)
	return time.Unix(int64(at), 0).UTC()
}
