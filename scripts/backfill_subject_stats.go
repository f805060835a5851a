// Package main contains a small backfill tool that rebuilds subject_stats rows
// from the quiz_attempts history. Useful after restoring a partial backup or
// when subject counters drifted from the attempt log.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/lib/pq"

	"practicehub/internal/services"
)

func main() {
	var dbURL string
	var batchSize int
	var dryRun bool
	var maxRows int

	flag.StringVar(&dbURL, "db", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	flag.IntVar(&batchSize, "batch", 500, "Number of (user, subject) pairs to process per batch")
	flag.BoolVar(&dryRun, "dry-run", true, "If true, don't write stats; just print what would be written")
	flag.IntVar(&maxRows, "max", 0, "Maximum number of pairs to process (0 = no limit)")
	flag.Parse()

	if dbURL == "" {
		log.Fatal("database URL must be provided via -db or DATABASE_URL")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalf("failed to close db: %v", cerr)
		}
	}()

	ctx := context.Background()

	processed := 0
	lastUserID := 0
	lastSubject := ""
	for {
		if maxRows > 0 && processed >= maxRows {
			log.Printf("reached max %d pairs, stopping", maxRows)
			break
		}

		// select pairs keyed past the last processed (user_id, subject) so we
		// never refetch pairs that the dry run left unwritten
		rows, err := db.QueryContext(ctx, `
            SELECT qa.user_id, qa.subject,
                   COUNT(*) AS quizzes,
                   COALESCE(SUM(qa.points_earned), 0) AS xp
            FROM quiz_attempts qa
            WHERE (qa.user_id, qa.subject) > ($2, $3)
            GROUP BY qa.user_id, qa.subject
            ORDER BY qa.user_id, qa.subject
            LIMIT $1
        `, batchSize, lastUserID, lastSubject)
		if err != nil {
			log.Fatalf("failed to query quiz attempts: %v", err)
		}

		var pairs []struct {
			UserID  int
			Subject string
			Quizzes int
			XP      int64
		}

		for rows.Next() {
			var p struct {
				UserID  int
				Subject string
				Quizzes int
				XP      int64
			}
			if err := rows.Scan(&p.UserID, &p.Subject, &p.Quizzes, &p.XP); err != nil {
				if cerr := rows.Close(); cerr != nil {
					log.Fatalf("scan pair: %v; also failed to close rows: %v", err, cerr)
				}
				log.Fatalf("scan pair: %v", err)
			}
			pairs = append(pairs, p)
		}
		if cerr := rows.Close(); cerr != nil {
			log.Printf("warning: failed to close rows: %v", cerr)
		}

		if len(pairs) == 0 {
			log.Println("no more pairs to process; done")
			break
		}

		lastUserID = pairs[len(pairs)-1].UserID
		lastSubject = pairs[len(pairs)-1].Subject

		for _, p := range pairs {
			if maxRows > 0 && processed >= maxRows {
				break
			}

			level := services.LevelForXP(p.XP)

			var curXP int64
			var curQuizzes int
			err := db.QueryRowContext(ctx, `
                SELECT xp, quizzes_completed FROM subject_stats
                WHERE user_id = $1 AND subject = $2
            `, p.UserID, p.Subject).Scan(&curXP, &curQuizzes)
			if err != nil && err != sql.ErrNoRows {
				log.Fatalf("query subject_stats for user=%d subject=%s: %v", p.UserID, p.Subject, err)
			}
			if err == nil && curXP == p.XP && curQuizzes == p.Quizzes {
				processed++
				continue
			}

			if dryRun {
				log.Printf("dry-run: would set user=%d subject=%s xp=%d level=%d quizzes=%d (was xp=%d quizzes=%d)",
					p.UserID, p.Subject, p.XP, level, p.Quizzes, curXP, curQuizzes)
				processed++
				continue
			}

			_, err = db.ExecContext(ctx, `
                INSERT INTO subject_stats (user_id, subject, xp, level, quizzes_completed, updated_at)
                VALUES ($1, $2, $3, $4, $5, NOW())
                ON CONFLICT (user_id, subject) DO UPDATE
                SET xp = EXCLUDED.xp,
                    level = EXCLUDED.level,
                    quizzes_completed = EXCLUDED.quizzes_completed,
                    updated_at = NOW()
            `, p.UserID, p.Subject, p.XP, level, p.Quizzes)
			if err != nil {
				log.Fatalf("upsert subject_stats for user=%d subject=%s: %v", p.UserID, p.Subject, err)
			}
			log.Printf("updated user=%d subject=%s xp=%d level=%d quizzes=%d", p.UserID, p.Subject, p.XP, level, p.Quizzes)
			processed++
		}
	}

	log.Printf("backfill complete: processed %d pairs (dry-run=%v)", processed, dryRun)
}
