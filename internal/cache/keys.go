package cache

import "fmt"

// Cache key generators
func PlayerKey(playerID string) string {
	return fmt.Sprintf("player:%s", playerID)
}

func LeagueKey(leagueID string) string {
	return fmt.Sprintf("league:%s", leagueID)
}

func ProjectionKey(playerID string, season, week int, source string) string {
	return fmt.Sprintf("projection:%s:%d:%d:%s", playerID, season, week, source)
}

func ProjectionPattern(playerID string) string {
	return fmt.Sprintf("projection:%s:*", playerID)
}

func RosterKey(leagueID string) string {
	return fmt.Sprintf("roster:%s:slots", leagueID)
}

func RosterPattern(leagueID string) string {
	return fmt.Sprintf("roster:%s:*", leagueID)
}

func ValuationKey(playerID, leagueID string, season, week int) string {
	return fmt.Sprintf("valuation:%s:%s:%d:%d", leagueID, playerID, season, week)
}

func ValuationPattern(leagueID string) string {
	return fmt.Sprintf("valuation:%s:*", leagueID)
}

func PeerDistributionKey(position, scoring string, season, week int) string {
	return fmt.Sprintf("peers:%s:%s:%d:%d", position, scoring, season, week)
}
